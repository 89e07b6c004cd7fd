// model.go this code defines the data model for the application
package datastore

import "time"

// ComparisonStatus is the lifecycle state of a prediction record.
type ComparisonStatus string

const (
	StatusPending   ComparisonStatus = "PENDING"
	StatusCompleted ComparisonStatus = "COMPLETED"
	StatusMissed    ComparisonStatus = "MISSED"
)

// FeatureSnapshot captures the context a prediction was made under. All fields
// are optional, older records may carry none of them.
type FeatureSnapshot struct {
	Hour        *int
	DayOfWeek   *int // 0=Sunday .. 6=Saturday
	IsWeekend   *bool
	WeatherCode *int
	IsRaining   *bool
	Temperature *float64
}

// PredictionRecord is one issued forecast awaiting (or past) comparison
// against reality. actual/error fields stay null until the record is COMPLETED.
type PredictionRecord struct {
	ID                  uint      `gorm:"primaryKey"`
	EntityID            string    `gorm:"index:idx_prediction_entity;index:idx_prediction_entity_status"`
	PredictionTime      time.Time // when the forecast was generated
	TargetTime          time.Time `gorm:"index:idx_prediction_target;index:idx_prediction_status_target,priority:2"`
	PredictedValue      float64   // forecast wait in minutes
	ActualValue         *float64  // filled in by the comparator
	AbsoluteError       *float64
	PercentageError     *float64 // null when actual is zero
	WasUnplannedClosure bool
	ComparisonStatus    ComparisonStatus `gorm:"type:varchar(20);index:idx_prediction_status_target,priority:1;index:idx_prediction_entity_status"`
	PredictionType      string           `gorm:"type:varchar(20);index"` // "hourly" or "daily"
	ModelVersion        string           `gorm:"type:varchar(40);index"`
	Features            FeatureSnapshot  `gorm:"embedded;embeddedPrefix:feature_"`
	CreatedAt           time.Time        `gorm:"index"`
}

// WaitTimeSample is one observed wait-time/status data point. This table is
// written by the upstream scraper, this subsystem only reads it.
type WaitTimeSample struct {
	ID          uint      `gorm:"primaryKey"`
	EntityID    string    `gorm:"index:idx_sample_entity_time,priority:1"`
	Timestamp   time.Time `gorm:"index:idx_sample_entity_time,priority:2"`
	WaitMinutes *float64  // null when the entity reports no queue value
	IsOperating bool
}

// MLModel is one row per trained forecasting model version, with the metrics
// measured on the held-out set at training time.
type MLModel struct {
	ID           uint   `gorm:"primaryKey"`
	Version      string `gorm:"uniqueIndex;type:varchar(40)"`
	TrainedAt    time.Time
	IsActive     bool `gorm:"index"`
	TrainingMAE  float64
	TrainingRMSE float64
	TrainingMAPE float64
	TrainingR2   float64
}
