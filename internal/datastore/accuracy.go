// accuracy.go: prediction ledger and actuals queries for the accuracy subsystem
package datastore

import (
	"fmt"
	"time"

	"github.com/parkfan/waitwatch-go/internal/errors"
	"gorm.io/gorm"
)

// updateChunkSize bounds the number of rows written per transaction when the
// comparator persists a batch, per-record transactions are too slow at the
// thousands-per-run scale.
const updateChunkSize = 500

// SavePrediction inserts a new prediction record into the ledger. The record
// always starts in the PENDING state.
func (ds *DataStore) SavePrediction(record *PredictionRecord) error {
	if record.ComparisonStatus == "" {
		record.ComparisonStatus = StatusPending
	}

	if err := ds.DB.Create(record).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_prediction").
			Context("entity_id", record.EntityID).
			Build()
	}

	return nil
}

// GetPrediction retrieves a prediction record by its ID.
func (ds *DataStore) GetPrediction(id uint) (PredictionRecord, error) {
	var record PredictionRecord
	if err := ds.DB.First(&record, id).Error; err != nil {
		return PredictionRecord{}, fmt.Errorf("getting prediction record %d: %w", id, err)
	}
	return record, nil
}

// GetPendingPredictions returns PENDING records whose target time falls inside
// [from, to), ordered by target time, capped at limit.
func (ds *DataStore) GetPendingPredictions(from, to time.Time, limit int) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := ds.DB.
		Where("comparison_status = ?", StatusPending).
		Where("target_time >= ? AND target_time < ?", from, to).
		Order("target_time").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_pending_predictions").
			Build()
	}

	return records, nil
}

// UpdatePredictions persists comparison results in bulk. Records are written
// in chunks, each chunk inside its own transaction.
func (ds *DataStore) UpdatePredictions(records []PredictionRecord) error {
	for start := 0; start < len(records); start += updateChunkSize {
		end := min(start+updateChunkSize, len(records))
		chunk := records[start:end]

		err := ds.DB.Transaction(func(tx *gorm.DB) error {
			for i := range chunk {
				if err := tx.Save(&chunk[i]).Error; err != nil {
					return fmt.Errorf("saving record %d: %w", chunk[i].ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "update_predictions").
				Context("chunk_start", start).
				Build()
		}
	}

	return nil
}

// DeletePredictionsBefore removes records in the given statuses whose target
// time is older than cutoff. Returns the number of rows deleted.
func (ds *DataStore) DeletePredictionsBefore(statuses []ComparisonStatus, cutoff time.Time) (int64, error) {
	result := ds.DB.
		Where("comparison_status IN ?", statuses).
		Where("target_time < ?", cutoff).
		Delete(&PredictionRecord{})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_predictions_before").
			Context("cutoff", cutoff.Format(time.RFC3339)).
			Build()
	}

	return result.RowsAffected, nil
}

// GetWaitTimeSamples returns the observed samples for the given entities inside
// [from, to], ordered by entity then time. One query serves a whole comparator
// batch.
func (ds *DataStore) GetWaitTimeSamples(entityIDs []string, from, to time.Time) ([]WaitTimeSample, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	var samples []WaitTimeSample
	err := ds.DB.
		Where("entity_id IN ?", entityIDs).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Order("entity_id, timestamp").
		Find(&samples).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_wait_time_samples").
			Context("entity_count", len(entityIDs)).
			Build()
	}

	return samples, nil
}

// GetCompletedPredictions returns COMPLETED records with target time at or
// after since, optionally filtered to a single entity.
func (ds *DataStore) GetCompletedPredictions(since time.Time, entityID string) ([]PredictionRecord, error) {
	query := ds.DB.
		Where("comparison_status = ?", StatusCompleted).
		Where("target_time >= ?", since)

	if entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}

	var records []PredictionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_completed_predictions").
			Build()
	}

	return records, nil
}

// CountPredictions returns the total and completed record counts for the
// window, used for the coverage metric.
func (ds *DataStore) CountPredictions(since time.Time, entityID string) (total, completed int64, err error) {
	base := ds.DB.Model(&PredictionRecord{}).Where("target_time >= ?", since)
	if entityID != "" {
		base = base.Where("entity_id = ?", entityID)
	}

	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("counting predictions: %w", err)
	}
	if err = base.Session(&gorm.Session{}).Where("comparison_status = ?", StatusCompleted).Count(&completed).Error; err != nil {
		return 0, 0, fmt.Errorf("counting completed predictions: %w", err)
	}

	return total, completed, nil
}

// PredictionError is one completed comparison exported for training weights.
type PredictionError struct {
	EntityID        string
	TargetTime      time.Time
	AbsoluteError   float64
	PercentageError *float64
}

// GetCompletedErrors returns (entity, target time, error) tuples for COMPLETED
// records in [start, end] with a non-negative absolute error. Consumed by the
// training pipeline to weight samples.
func (ds *DataStore) GetCompletedErrors(start, end time.Time) ([]PredictionError, error) {
	var rows []PredictionError

	err := ds.DB.Model(&PredictionRecord{}).
		Select("entity_id, target_time, absolute_error, percentage_error").
		Where("comparison_status = ?", StatusCompleted).
		Where("target_time BETWEEN ? AND ?", start, end).
		Where("absolute_error IS NOT NULL AND absolute_error >= 0").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_completed_errors").
			Build()
	}

	return rows, nil
}

// ErrModelNotFound is returned by GetActiveModel when the registry holds no
// active model. Callers treat it as "registry empty", not as a failure.
var ErrModelNotFound = gorm.ErrRecordNotFound

// GetActiveModel returns the currently active forecasting model.
func (ds *DataStore) GetActiveModel() (MLModel, error) {
	var model MLModel
	if err := ds.DB.Where("is_active = ?", true).Order("trained_at DESC").First(&model).Error; err != nil {
		return MLModel{}, err
	}
	return model, nil
}

// SaveModel inserts or updates a model registry row. At most one model may be
// active at a time, activating a model deactivates the others.
func (ds *DataStore) SaveModel(model *MLModel) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if model.IsActive {
			if err := tx.Model(&MLModel{}).Where("version != ?", model.Version).Update("is_active", false).Error; err != nil {
				return fmt.Errorf("deactivating previous models: %w", err)
			}
		}
		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("saving model %s: %w", model.Version, err)
		}
		return nil
	})
}
