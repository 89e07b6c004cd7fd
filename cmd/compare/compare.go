// Package compare implements the one-shot comparison command.
package compare

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Command creates the compare command for running a single comparison pass.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Run a single prediction comparison pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), settings)
		},
	}
}

func runCompare(ctx context.Context, settings *conf.Settings) error {
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

	comparator := accuracy.NewComparator(settings, ds, nil)
	result, err := comparator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Comparison pass finished: %d candidates, %d completed (%d closures), %d missed, %d retained\n",
		result.Candidates, result.Completed+result.Closures, result.Closures, result.Missed, result.Retained)
	return nil
}
