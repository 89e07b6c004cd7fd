// Package sweep implements the one-shot retention sweep command.
package sweep

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Command creates the sweep command for running a single retention pass.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), settings)
		},
	}
}

func runSweep(ctx context.Context, settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in settings")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logging.Error("Failed to close datastore", "error", err)
		}
	}()

	sweeper := accuracy.NewSweeper(settings, ds, nil)
	result, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Retention sweep finished: %d unmatched and %d completed records deleted\n",
		result.UnmatchedDeleted, result.CompletedDeleted)
	return nil
}
