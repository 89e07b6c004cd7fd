// Package accuracy implements the prediction accuracy tracking pipeline:
// recording issued forecasts, comparing them against observed wait times,
// aggregating error statistics and detecting model drift.
package accuracy

import (
	"io"
	"log/slog"
	"time"

	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Package-level logger for the accuracy subsystem
var (
	accuracyLogger   *slog.Logger
	accuracyLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	accuracyLevelVar.Set(slog.LevelDebug)

	accuracyLogger, _, err = logging.NewFileLogger("logs/accuracy.log", "accuracy", accuracyLevelVar)
	if err != nil {
		logging.Error("Failed to initialize accuracy file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: accuracyLevelVar})
		accuracyLogger = slog.New(fbHandler).With("service", "accuracy")
	}
}

// Prediction is the input supplied by the forecast source when a new forecast
// is generated.
type Prediction struct {
	EntityID       string
	PredictionTime time.Time
	TargetTime     time.Time
	PredictedValue float64
	ModelVersion   string
	PredictionType string
	Features       datastore.FeatureSnapshot
}

// Ledger records issued forecasts. Records enter in the PENDING state and are
// only ever mutated by the Comparator and deleted by the Sweeper.
type Ledger struct {
	db datastore.Interface
}

// NewLedger creates a new prediction ledger backed by the given store.
func NewLedger(db datastore.Interface) *Ledger {
	return &Ledger{db: db}
}

// Record inserts a new PENDING prediction record. Concurrent inserts for the
// same entity and target time are allowed, the ledger does not deduplicate.
func (l *Ledger) Record(p *Prediction) error {
	if p.EntityID == "" {
		return errors.Newf("prediction entity id must not be empty").
			Component("accuracy").
			Category(errors.CategoryValidation).
			Build()
	}
	if p.PredictedValue < 0 {
		return errors.Newf("predicted value must not be negative: %f", p.PredictedValue).
			Component("accuracy").
			Category(errors.CategoryValidation).
			Context("entity_id", p.EntityID).
			Build()
	}
	if !p.TargetTime.After(p.PredictionTime) {
		return errors.Newf("target time %s must be after prediction time %s",
			p.TargetTime.Format(time.RFC3339), p.PredictionTime.Format(time.RFC3339)).
			Component("accuracy").
			Category(errors.CategoryValidation).
			Context("entity_id", p.EntityID).
			Build()
	}

	record := &datastore.PredictionRecord{
		EntityID:         p.EntityID,
		PredictionTime:   p.PredictionTime,
		TargetTime:       p.TargetTime,
		PredictedValue:   p.PredictedValue,
		ComparisonStatus: datastore.StatusPending,
		PredictionType:   p.PredictionType,
		ModelVersion:     p.ModelVersion,
		Features:         p.Features,
	}

	if err := l.db.SavePrediction(record); err != nil {
		return err
	}

	accuracyLogger.Debug("Recorded prediction",
		"entity_id", p.EntityID,
		"target_time", p.TargetTime.Format(time.RFC3339),
		"predicted", p.PredictedValue,
		"type", p.PredictionType)

	return nil
}
