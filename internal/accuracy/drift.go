// drift.go: live accuracy versus training baseline comparison
package accuracy

import (
	"context"
	"time"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
	"github.com/parkfan/waitwatch-go/internal/observability/metrics"
)

// Drift status values, ordered by severity.
const (
	DriftStatusUnknown  = "unknown"
	DriftStatusHealthy  = "healthy"
	DriftStatusWarning  = "warning"
	DriftStatusCritical = "critical"
)

// Retrain reason labels carried in a drift snapshot.
const (
	ReasonMAEDegraded = "mae_degraded"
	ReasonMAECeiling  = "mae_ceiling"
	ReasonLowCoverage = "low_coverage"
	ReasonMAPECeiling = "mape_ceiling"
)

// DriftSnapshot is the result of one drift evaluation.
type DriftSnapshot struct {
	EvaluatedAt   time.Time `json:"evaluated_at"`
	ModelVersion  string    `json:"model_version"`
	WindowDays    int       `json:"window_days"`
	SampleCount   int       `json:"sample_count"`
	Coverage      float64   `json:"coverage_percent"`
	RollingMAE    float64   `json:"rolling_mae"`
	BaselineMAE   *float64  `json:"baseline_mae,omitempty"`
	DriftPercent  *float64  `json:"drift_percent,omitempty"`
	Status        string    `json:"status"`
	ShouldRetrain bool      `json:"should_retrain"`
	Reasons       []string  `json:"reasons,omitempty"`
}

// AlertPublisher delivers drift alerts to an external channel.
type AlertPublisher interface {
	PublishDriftAlert(ctx context.Context, snapshot *DriftSnapshot) error
}

// DriftMonitor compares the rolling accuracy window against the active
// model's training baseline and decides whether retraining is warranted.
type DriftMonitor struct {
	db         datastore.Interface
	settings   *conf.Settings
	aggregator *Aggregator
	publisher  AlertPublisher
	metrics    *metrics.AccuracyMetrics
}

// NewDriftMonitor creates a drift monitor. The publisher may be nil, in which
// case alerts are only logged and exported as metrics.
func NewDriftMonitor(settings *conf.Settings, db datastore.Interface, aggregator *Aggregator, publisher AlertPublisher, accuracyMetrics *metrics.AccuracyMetrics) *DriftMonitor {
	return &DriftMonitor{
		db:         db,
		settings:   settings,
		aggregator: aggregator,
		publisher:  publisher,
		metrics:    accuracyMetrics,
	}
}

// Evaluate performs one drift evaluation over the configured window.
func (d *DriftMonitor) Evaluate(ctx context.Context) (*DriftSnapshot, error) {
	return d.evaluateAt(ctx, time.Now())
}

func (d *DriftMonitor) evaluateAt(ctx context.Context, now time.Time) (*DriftSnapshot, error) {
	cfg := d.settings.Accuracy.Drift

	snapshot := &DriftSnapshot{
		EvaluatedAt: now,
		WindowDays:  cfg.WindowDays,
		Status:      DriftStatusUnknown,
	}

	var baseline *float64
	model, err := d.db.GetActiveModel()
	switch {
	case err == nil:
		snapshot.ModelVersion = model.Version
		if model.TrainingMAE > 0 {
			mae := model.TrainingMAE
			baseline = &mae
		}
	case errors.Is(err, datastore.ErrModelNotFound):
		// Empty registry, evaluation proceeds without a baseline so the
		// ceiling checks still apply.
		snapshot.ModelVersion = cfg.DefaultModelVersion
		accuracyLogger.Warn("No active model in registry, drift baseline unavailable",
			"fallback_version", cfg.DefaultModelVersion)
	default:
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryDrift).
			Context("operation", "get_active_model").
			Build()
	}

	since := now.AddDate(0, 0, -cfg.WindowDays)
	summary, err := d.aggregator.Summarize(since, "")
	if err != nil {
		return nil, err
	}

	snapshot.SampleCount = summary.SampleCount
	snapshot.Coverage = summary.Coverage
	snapshot.RollingMAE = summary.MAE
	snapshot.BaselineMAE = baseline

	if summary.SampleCount == 0 {
		accuracyLogger.Info("Drift evaluation skipped, no completed records in window",
			"window_days", cfg.WindowDays)
		return snapshot, nil
	}

	if baseline != nil {
		driftPct := (summary.MAE - *baseline) / *baseline * 100
		snapshot.DriftPercent = &driftPct

		switch {
		case driftPct >= cfg.CriticalPercent:
			snapshot.Status = DriftStatusCritical
		case driftPct >= cfg.WarningPercent:
			snapshot.Status = DriftStatusWarning
		default:
			snapshot.Status = DriftStatusHealthy
		}

		if driftPct >= cfg.MinDriftPercent {
			snapshot.Reasons = append(snapshot.Reasons, ReasonMAEDegraded)
		}
	}

	if summary.MAE > cfg.MaeCeiling {
		snapshot.Reasons = append(snapshot.Reasons, ReasonMAECeiling)
	}
	if summary.Coverage < cfg.CoverageFloor {
		snapshot.Reasons = append(snapshot.Reasons, ReasonLowCoverage)
	}
	if summary.MAPE != nil && *summary.MAPE > cfg.MapeCeiling {
		snapshot.Reasons = append(snapshot.Reasons, ReasonMAPECeiling)
	}
	snapshot.ShouldRetrain = len(snapshot.Reasons) > 0

	if d.metrics != nil {
		driftPct := 0.0
		if snapshot.DriftPercent != nil {
			driftPct = *snapshot.DriftPercent
		}
		d.metrics.UpdateDriftGauges(driftPct, snapshot.RollingMAE, snapshot.Coverage)
	}

	d.reportDrift(ctx, snapshot)

	return snapshot, nil
}

// reportDrift logs the evaluation and raises alerts for degraded states.
func (d *DriftMonitor) reportDrift(ctx context.Context, snapshot *DriftSnapshot) {
	logArgs := []any{
		"status", snapshot.Status,
		"model_version", snapshot.ModelVersion,
		"rolling_mae", snapshot.RollingMAE,
		"coverage", snapshot.Coverage,
		"sample_count", snapshot.SampleCount,
		"should_retrain", snapshot.ShouldRetrain,
	}
	if snapshot.DriftPercent != nil {
		logArgs = append(logArgs, "drift_percent", *snapshot.DriftPercent)
	}

	switch snapshot.Status {
	case DriftStatusCritical:
		accuracyLogger.Error("Model drift critical", logArgs...)
	case DriftStatusWarning:
		accuracyLogger.Warn("Model drift warning", logArgs...)
	default:
		accuracyLogger.Info("Drift evaluation finished", logArgs...)
	}

	if snapshot.Status != DriftStatusWarning && snapshot.Status != DriftStatusCritical {
		return
	}

	if d.metrics != nil {
		d.metrics.RecordDriftAlert(snapshot.Status)
	}

	if d.publisher != nil {
		if err := d.publisher.PublishDriftAlert(ctx, snapshot); err != nil {
			accuracyLogger.Error("Failed to publish drift alert",
				"status", snapshot.Status,
				"error", err)
		}
	}
}
