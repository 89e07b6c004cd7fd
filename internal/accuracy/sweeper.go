// sweeper.go: retention sweep over terminal and stale prediction records
package accuracy

import (
	"context"
	"time"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
	"github.com/parkfan/waitwatch-go/internal/observability/metrics"
)

// Sweeper deletes prediction records past their retention horizon. Unmatched
// records (MISSED, or PENDING left behind by a gap in actuals) are kept on a
// short horizon, COMPLETED records on a long one so aggregates stay stable.
type Sweeper struct {
	db       datastore.Interface
	settings *conf.Settings
	metrics  *metrics.AccuracyMetrics
}

// NewSweeper creates a retention sweeper over the given store.
func NewSweeper(settings *conf.Settings, db datastore.Interface, accuracyMetrics *metrics.AccuracyMetrics) *Sweeper {
	return &Sweeper{
		db:       db,
		settings: settings,
		metrics:  accuracyMetrics,
	}
}

// SweepResult summarizes one retention pass.
type SweepResult struct {
	UnmatchedDeleted int64
	CompletedDeleted int64
}

// Run performs one retention pass. The two categories are swept
// independently, a failure in one does not block the other.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	return s.runAt(ctx, time.Now())
}

func (s *Sweeper) runAt(ctx context.Context, now time.Time) (SweepResult, error) {
	cfg := s.settings.Accuracy.Retention

	var result SweepResult
	var errs []error

	unmatchedCutoff := now.AddDate(0, 0, -cfg.UnmatchedDays)
	deleted, err := s.db.DeletePredictionsBefore(
		[]datastore.ComparisonStatus{datastore.StatusMissed, datastore.StatusPending},
		unmatchedCutoff)
	if err != nil {
		errs = append(errs, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryRetention).
			Context("category", "unmatched").
			Build())
	} else {
		result.UnmatchedDeleted = deleted
		if s.metrics != nil {
			s.metrics.RecordSweeperDeleted("unmatched", deleted)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	completedCutoff := now.AddDate(0, 0, -cfg.CompletedDays)
	deleted, err = s.db.DeletePredictionsBefore(
		[]datastore.ComparisonStatus{datastore.StatusCompleted},
		completedCutoff)
	if err != nil {
		errs = append(errs, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryRetention).
			Context("category", "completed").
			Build())
	} else {
		result.CompletedDeleted = deleted
		if s.metrics != nil {
			s.metrics.RecordSweeperDeleted("completed", deleted)
		}
	}

	if len(errs) > 0 {
		if s.metrics != nil {
			s.metrics.RecordSweeperRun("error")
		}
		return result, errors.Join(errs...)
	}

	if s.metrics != nil {
		s.metrics.RecordSweeperRun("success")
	}

	accuracyLogger.Info("Retention sweep finished",
		"unmatched_deleted", result.UnmatchedDeleted,
		"completed_deleted", result.CompletedDeleted,
		"unmatched_cutoff", unmatchedCutoff.Format(time.RFC3339),
		"completed_cutoff", completedCutoff.Format(time.RFC3339))

	return result, nil
}
