// Package stats implements the accuracy statistics report command.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Command creates the stats command for printing an accuracy report.
func Command(settings *conf.Settings) *cobra.Command {
	var days int
	var entityID string
	var topN int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print an accuracy report to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), settings, days, entityID, topN)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Window size in days")
	cmd.Flags().StringVar(&entityID, "entity", "", "Limit the report to one entity")
	cmd.Flags().IntVar(&topN, "top", 5, "Number of best/worst performers to list")

	return cmd
}

func runStats(ctx context.Context, settings *conf.Settings, days int, entityID string, topN int) error {
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

	since := time.Now().AddDate(0, 0, -days)
	aggregator := accuracy.NewAggregator(settings, ds)

	summary, err := aggregator.Summarize(since, entityID)
	if err != nil {
		return err
	}

	scope := "all entities"
	if entityID != "" {
		scope = entityID
	}
	fmt.Printf("Accuracy report for %s over the last %d days\n\n", scope, days)
	fmt.Printf("  Predictions: %d total, %d completed (%.1f%% coverage)\n",
		summary.Total, summary.Completed, summary.Coverage)
	fmt.Printf("  MAE:  %.2f min\n", summary.MAE)
	fmt.Printf("  RMSE: %.2f min\n", summary.RMSE)
	if summary.MAPE != nil {
		fmt.Printf("  MAPE: %.1f%%\n", *summary.MAPE)
	}
	if summary.R2 != nil {
		fmt.Printf("  R2:   %.3f\n", *summary.R2)
	}
	fmt.Printf("  Badge: %s\n\n", summary.Badge)

	if len(summary.ByType) > 0 {
		types := make([]string, 0, len(summary.ByType))
		for name := range summary.ByType {
			types = append(types, name)
		}
		sort.Strings(types)

		fmt.Println("  By prediction type:")
		for _, name := range types {
			sub := summary.ByType[name]
			fmt.Printf("    %-8s MAE %.2f, RMSE %.2f, %.1f%% coverage (%d samples)\n",
				name, sub.MAE, sub.RMSE, sub.Coverage, sub.SampleCount)
		}
		fmt.Println()
	}

	if entityID == "" {
		performers, err := aggregator.TopPerformers(since, topN)
		if err != nil {
			return err
		}
		if len(performers.Best) > 0 {
			fmt.Println("  Best predicted entities:")
			for _, p := range performers.Best {
				fmt.Printf("    %-30s MAE %.2f (%d samples)\n", p.EntityID, p.MeanAbsError, p.Count)
			}
			fmt.Println("  Worst predicted entities:")
			for _, p := range performers.Worst {
				fmt.Printf("    %-30s MAE %.2f (%d samples)\n", p.EntityID, p.MeanAbsError, p.Count)
			}
			fmt.Println()
		}
	}

	driftMonitor := accuracy.NewDriftMonitor(settings, ds, aggregator, nil, nil)
	snapshot, err := driftMonitor.Evaluate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("  Drift status: %s (model %s)\n", snapshot.Status, snapshot.ModelVersion)
	if snapshot.DriftPercent != nil {
		fmt.Printf("  Drift: %.1f%% vs training baseline %.2f\n", *snapshot.DriftPercent, *snapshot.BaselineMAE)
	}
	if snapshot.ShouldRetrain {
		fmt.Printf("  Retraining recommended: %v\n", snapshot.Reasons)
	}

	return nil
}
