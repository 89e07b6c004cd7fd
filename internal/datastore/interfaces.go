// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Package-level logger for datastore operations
var datastoreLogger *slog.Logger

func init() {
	datastoreLogger = logging.ForService("datastore")
	if datastoreLogger == nil {
		datastoreLogger = slog.Default().With("service", "datastore")
	}
}

// Interface abstracts the underlying database implementation and defines the
// operations available to the accuracy subsystem.
type Interface interface {
	Open() error
	Close() error

	// prediction ledger
	SavePrediction(record *PredictionRecord) error
	GetPrediction(id uint) (PredictionRecord, error)
	GetPendingPredictions(from, to time.Time, limit int) ([]PredictionRecord, error)
	UpdatePredictions(records []PredictionRecord) error
	DeletePredictionsBefore(statuses []ComparisonStatus, cutoff time.Time) (int64, error)

	// actuals time series, read only from this subsystem's perspective
	GetWaitTimeSamples(entityIDs []string, from, to time.Time) ([]WaitTimeSample, error)

	// aggregation reads
	GetCompletedPredictions(since time.Time, entityID string) ([]PredictionRecord, error)
	CountPredictions(since time.Time, entityID string) (total, completed int64, err error)
	GetHourlyErrorStats(since time.Time) ([]PeriodErrorStats, error)
	GetDayOfWeekErrorStats(since time.Time) ([]PeriodErrorStats, error)
	GetEntityErrorStats(since time.Time, minSamples int) ([]EntityErrorStats, error)
	CountPredictionsByType(since time.Time) ([]TypeCounts, error)
	GetDailyMAE(since time.Time) ([]DailyMAE, error)
	GetCompletedErrors(start, end time.Time) ([]PredictionError, error)

	// model registry
	GetActiveModel() (MLModel, error)
	SaveModel(model *MLModel) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

// performAutoMigration runs schema migration for all tables owned or read by
// this subsystem.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()

	tableMappings := []struct {
		model any
		name  string
	}{
		{&PredictionRecord{}, "prediction_records"},
		{&WaitTimeSample{}, "wait_time_samples"},
		{&MLModel{}, "ml_models"},
	}

	for _, table := range tableMappings {
		if err := db.AutoMigrate(table.model); err != nil {
			return fmt.Errorf("failed to migrate table %s: %w", table.name, err)
		}
		if debug {
			datastoreLogger.Debug("Table migrated", "table", table.name, "db_type", dbType)
		}
	}

	datastoreLogger.Debug("Database migration completed",
		"db_type", dbType,
		"tables", len(tableMappings),
		"duration_ms", time.Since(migrationStart).Milliseconds())

	return nil
}
