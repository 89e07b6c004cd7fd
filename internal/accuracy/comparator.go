// comparator.go: the batched prediction-vs-actual comparison state machine
package accuracy

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
	"github.com/parkfan/waitwatch-go/internal/observability/metrics"
)

// comparisonOutcome is one terminal result of matching a prediction against
// the actuals series. Keeping outcomes as a closed set of values means the
// actual/error fields can only be written together with the matching status.
type comparisonOutcome interface {
	apply(record *datastore.PredictionRecord)
}

// completedMatch means the entity was operating and reported a wait value.
type completedMatch struct {
	actual float64
}

func (o completedMatch) apply(record *datastore.PredictionRecord) {
	actual := o.actual
	absErr := math.Abs(record.PredictedValue - actual)

	record.ActualValue = &actual
	record.AbsoluteError = &absErr
	record.WasUnplannedClosure = false
	record.ComparisonStatus = datastore.StatusCompleted

	// Percentage error is undefined against a zero wait, leaving it null
	// excludes free-flowing rides from MAPE.
	if actual != 0 {
		pctErr := absErr / actual * 100
		record.PercentageError = &pctErr
	} else {
		record.PercentageError = nil
	}
}

// unplannedClosure means the entity was found closed or down despite a
// non-zero forecast. The whole predicted value counts as error.
type unplannedClosure struct{}

func (o unplannedClosure) apply(record *datastore.PredictionRecord) {
	zero := 0.0
	absErr := record.PredictedValue

	record.ActualValue = &zero
	record.AbsoluteError = &absErr
	record.PercentageError = nil
	record.WasUnplannedClosure = true
	record.ComparisonStatus = datastore.StatusCompleted
}

// timedOut means no actual sample ever arrived inside the match window and
// the record has waited past the retry deadline.
type timedOut struct{}

func (o timedOut) apply(record *datastore.PredictionRecord) {
	record.ComparisonStatus = datastore.StatusMissed
}

// Comparator drives PENDING prediction records to their terminal state by
// matching them against the actuals time series.
type Comparator struct {
	db       datastore.Interface
	settings *conf.Settings
	metrics  *metrics.AccuracyMetrics
}

// NewComparator creates a comparison job over the given store.
func NewComparator(settings *conf.Settings, db datastore.Interface, accuracyMetrics *metrics.AccuracyMetrics) *Comparator {
	return &Comparator{
		db:       db,
		settings: settings,
		metrics:  accuracyMetrics,
	}
}

// RunResult summarizes one comparison pass.
type RunResult struct {
	Candidates int
	Completed  int
	Closures   int
	Missed     int
	Retained   int
}

// Run performs one comparison pass. A run with no eligible candidates is a
// no-op. A failure to fetch actuals aborts the run without touching the
// ledger, the next scheduled run retries the same candidates.
func (c *Comparator) Run(ctx context.Context) (RunResult, error) {
	return c.runAt(ctx, time.Now())
}

// runAt is Run with an injectable clock.
func (c *Comparator) runAt(ctx context.Context, now time.Time) (RunResult, error) {
	cfg := c.settings.Accuracy.Comparison
	runID := uuid.New().String()
	start := time.Now()

	defer func() {
		if c.metrics != nil {
			c.metrics.RecordComparisonDuration(time.Since(start).Seconds())
		}
	}()

	from := now.Add(-time.Duration(cfg.LookbackHours) * time.Hour)
	to := now.Add(-time.Duration(cfg.ReadyBufferMinutes) * time.Minute)

	candidates, err := c.db.GetPendingPredictions(from, to, cfg.BatchSize)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordComparisonRun("error")
		}
		return RunResult{}, err
	}

	if len(candidates) == 0 {
		accuracyLogger.Debug("No pending predictions due for comparison", "run_id", runID)
		if c.metrics != nil {
			c.metrics.RecordComparisonRun("empty")
		}
		return RunResult{}, nil
	}

	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	tolerance := time.Duration(cfg.MatchToleranceMinutes) * time.Minute
	samplesByEntity, err := c.fetchActuals(candidates, tolerance)
	if err != nil {
		accuracyLogger.Error("Failed to fetch actuals for comparison batch, aborting run",
			"run_id", runID,
			"candidates", len(candidates),
			"error", err)
		if c.metrics != nil {
			c.metrics.RecordComparisonRun("error")
		}
		return RunResult{}, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryComparison).
			Context("run_id", runID).
			Context("operation", "fetch_actuals").
			Build()
	}

	missedTimeout := time.Duration(cfg.MissedTimeoutHours) * time.Hour
	exactDelta := time.Duration(cfg.ExactMatchSeconds) * time.Second

	var result RunResult
	result.Candidates = len(candidates)

	changed := make([]datastore.PredictionRecord, 0, len(candidates))
	for i := range candidates {
		record := &candidates[i]
		outcome := matchRecord(record, samplesByEntity[record.EntityID], tolerance, exactDelta)

		if outcome == nil {
			// No sample in the window. Retry on a later run unless the
			// record has waited past the timeout.
			if now.Sub(record.TargetTime) > missedTimeout {
				outcome = timedOut{}
			} else {
				result.Retained++
				continue
			}
		}

		outcome.apply(record)
		changed = append(changed, *record)

		switch {
		case record.ComparisonStatus == datastore.StatusMissed:
			result.Missed++
		case record.WasUnplannedClosure:
			result.Closures++
		default:
			result.Completed++
		}
	}

	if len(changed) > 0 {
		if err := c.db.UpdatePredictions(changed); err != nil {
			if c.metrics != nil {
				c.metrics.RecordComparisonRun("error")
			}
			return RunResult{}, err
		}
	}

	if c.metrics != nil {
		c.metrics.RecordComparisonRun("success")
		c.metrics.RecordComparisonOutcomes(result.Completed, result.Closures, result.Missed, result.Retained)
	}

	accuracyLogger.Info("Comparison run finished",
		"run_id", runID,
		"candidates", result.Candidates,
		"completed", result.Completed,
		"closures", result.Closures,
		"missed", result.Missed,
		"retained", result.Retained,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// fetchActuals loads the actual samples for the whole candidate batch with a
// single query spanning the batch's min/max target time plus the tolerance,
// grouped by entity.
func (c *Comparator) fetchActuals(candidates []datastore.PredictionRecord, tolerance time.Duration) (map[string][]datastore.WaitTimeSample, error) {
	minTarget := candidates[0].TargetTime
	maxTarget := candidates[0].TargetTime
	entitySet := make(map[string]struct{})

	for i := range candidates {
		if candidates[i].TargetTime.Before(minTarget) {
			minTarget = candidates[i].TargetTime
		}
		if candidates[i].TargetTime.After(maxTarget) {
			maxTarget = candidates[i].TargetTime
		}
		entitySet[candidates[i].EntityID] = struct{}{}
	}

	entityIDs := make([]string, 0, len(entitySet))
	for id := range entitySet {
		entityIDs = append(entityIDs, id)
	}

	samples, err := c.db.GetWaitTimeSamples(entityIDs, minTarget.Add(-tolerance), maxTarget.Add(tolerance))
	if err != nil {
		return nil, err
	}

	byEntity := make(map[string][]datastore.WaitTimeSample, len(entityIDs))
	for i := range samples {
		byEntity[samples[i].EntityID] = append(byEntity[samples[i].EntityID], samples[i])
	}

	return byEntity, nil
}

// matchRecord finds the sample closest in time to the record's target among
// the entity's samples. The earliest-found minimal delta wins ties, a delta at
// or below exactDelta short-circuits the scan. Returns nil when no sample
// falls within the tolerance.
func matchRecord(record *datastore.PredictionRecord, samples []datastore.WaitTimeSample, tolerance, exactDelta time.Duration) comparisonOutcome {
	var best *datastore.WaitTimeSample
	bestDelta := tolerance + 1

	for i := range samples {
		delta := record.TargetTime.Sub(samples[i].Timestamp).Abs()
		if delta > tolerance {
			continue
		}
		if delta < bestDelta {
			best = &samples[i]
			bestDelta = delta
			if delta <= exactDelta {
				break
			}
		}
	}

	if best == nil {
		return nil
	}

	if !best.IsOperating || best.WaitMinutes == nil {
		// A zero forecast against a closed entity is a correct call, not an
		// unplanned closure.
		if record.PredictedValue > 0 {
			return unplannedClosure{}
		}
		return completedMatch{actual: 0}
	}

	return completedMatch{actual: *best.WaitMinutes}
}
