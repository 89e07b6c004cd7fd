// internal/datastore/analytics.go
package datastore

import (
	"fmt"
	"time"
)

// PeriodErrorStats holds matched-record error statistics for one time bucket
// (hour of day or day of week).
type PeriodErrorStats struct {
	Period       int
	Count        int
	MeanAbsError float64
}

// EntityErrorStats holds per-entity error statistics used for performer
// rankings.
type EntityErrorStats struct {
	EntityID     string
	Count        int
	MeanAbsError float64
}

// DailyMAE holds one day's mean absolute error, consumed by the drift monitor.
type DailyMAE struct {
	Date         string
	MeanAbsError float64
	Count        int
}

// TypeCounts holds total and completed record counts for one prediction type.
type TypeCounts struct {
	PredictionType string
	Total          int64
	Completed      int64
}

// hourExpr returns the database-specific SQL fragment extracting the hour of
// day from the target_time column.
func (ds *DataStore) hourExpr() string {
	switch ds.DB.Dialector.Name() {
	case "sqlite":
		return "CAST(strftime('%H', target_time) AS INTEGER)"
	case "mysql":
		return "HOUR(target_time)"
	default:
		return ""
	}
}

// dayOfWeekExpr returns the database-specific SQL fragment extracting the day
// of week (0=Sunday .. 6=Saturday) from the target_time column.
func (ds *DataStore) dayOfWeekExpr() string {
	switch ds.DB.Dialector.Name() {
	case "sqlite":
		return "CAST(strftime('%w', target_time) AS INTEGER)"
	case "mysql":
		return "DAYOFWEEK(target_time) - 1"
	default:
		return ""
	}
}

// dateExpr returns the database-specific SQL fragment extracting the date from
// the target_time column.
func (ds *DataStore) dateExpr() string {
	switch ds.DB.Dialector.Name() {
	case "sqlite":
		return "strftime('%Y-%m-%d', target_time)"
	case "mysql":
		return "DATE_FORMAT(target_time, '%Y-%m-%d')"
	default:
		return ""
	}
}

// GetHourlyErrorStats returns mean absolute error grouped by hour of day for
// COMPLETED records since the given time.
func (ds *DataStore) GetHourlyErrorStats(since time.Time) ([]PeriodErrorStats, error) {
	return ds.periodErrorStats(ds.hourExpr(), since)
}

// GetDayOfWeekErrorStats returns mean absolute error grouped by day of week
// for COMPLETED records since the given time.
func (ds *DataStore) GetDayOfWeekErrorStats(since time.Time) ([]PeriodErrorStats, error) {
	return ds.periodErrorStats(ds.dayOfWeekExpr(), since)
}

func (ds *DataStore) periodErrorStats(periodExpr string, since time.Time) ([]PeriodErrorStats, error) {
	if periodExpr == "" {
		return nil, fmt.Errorf("unsupported database dialect for period stats: %s", ds.DB.Dialector.Name())
	}

	var stats []PeriodErrorStats
	err := ds.DB.Table("prediction_records").
		Select(fmt.Sprintf("%s as period, COUNT(*) as count, AVG(absolute_error) as mean_abs_error", periodExpr)).
		Where("comparison_status = ?", StatusCompleted).
		Where("target_time >= ?", since).
		Where("absolute_error IS NOT NULL").
		Group(periodExpr).
		Order("period").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting period error stats: %w", err)
	}

	return stats, nil
}

// GetEntityErrorStats returns per-entity MAE for COMPLETED records since the
// given time, excluding entities below the minimum sample count, ordered best
// first.
func (ds *DataStore) GetEntityErrorStats(since time.Time, minSamples int) ([]EntityErrorStats, error) {
	var stats []EntityErrorStats

	err := ds.DB.Table("prediction_records").
		Select("entity_id, COUNT(*) as count, AVG(absolute_error) as mean_abs_error").
		Where("comparison_status = ?", StatusCompleted).
		Where("target_time >= ?", since).
		Where("absolute_error IS NOT NULL").
		Group("entity_id").
		Having("COUNT(*) >= ?", minSamples).
		Order("mean_abs_error").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting entity error stats: %w", err)
	}

	return stats, nil
}

// CountPredictionsByType returns total and completed record counts grouped by
// prediction type since the given time.
func (ds *DataStore) CountPredictionsByType(since time.Time) ([]TypeCounts, error) {
	var counts []TypeCounts

	err := ds.DB.Table("prediction_records").
		Select("prediction_type, COUNT(*) as total, SUM(CASE WHEN comparison_status = ? THEN 1 ELSE 0 END) as completed", StatusCompleted).
		Where("target_time >= ?", since).
		Group("prediction_type").
		Order("prediction_type").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("error counting predictions by type: %w", err)
	}

	return counts, nil
}

// GetDailyMAE returns one MAE value per day for COMPLETED records since the
// given time, ordered by date.
func (ds *DataStore) GetDailyMAE(since time.Time) ([]DailyMAE, error) {
	dateExpr := ds.dateExpr()
	if dateExpr == "" {
		return nil, fmt.Errorf("unsupported database dialect for daily MAE: %s", ds.DB.Dialector.Name())
	}

	var stats []DailyMAE
	err := ds.DB.Table("prediction_records").
		Select(fmt.Sprintf("%s as date, AVG(absolute_error) as mean_abs_error, COUNT(*) as count", dateExpr)).
		Where("comparison_status = ?", StatusCompleted).
		Where("target_time >= ?", since).
		Where("absolute_error IS NOT NULL").
		Group(dateExpr).
		Order("date").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting daily MAE: %w", err)
	}

	return stats, nil
}
