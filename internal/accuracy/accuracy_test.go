// accuracy_test.go: shared test fixtures and prediction ledger tests
package accuracy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&datastore.PredictionRecord{}, &datastore.WaitTimeSample{}, &datastore.MLModel{})
	require.NoError(t, err)

	return &datastore.SQLiteStore{DataStore: datastore.DataStore{DB: db}}
}

// testSettings returns settings matching the shipped defaults
func testSettings() *conf.Settings {
	return &conf.Settings{
		Accuracy: conf.AccuracySettings{
			Comparison: conf.ComparisonSettings{
				IntervalMinutes:       10,
				ReadyBufferMinutes:    20,
				LookbackHours:         24,
				MatchToleranceMinutes: 15,
				ExactMatchSeconds:     60,
				MissedTimeoutHours:    2,
				BatchSize:             5000,
			},
			Retention: conf.RetentionSettings{
				UnmatchedDays: 7,
				CompletedDays: 90,
			},
			Aggregation: conf.AggregationSettings{
				MinSamplesForBadge:  10,
				MinSamplesPerEntity: 3,
				CacheTTLMinutes:     5,
			},
			Drift: conf.DriftSettings{
				WindowDays:          7,
				WarningPercent:      20,
				CriticalPercent:     30,
				MinDriftPercent:     15,
				MaeCeiling:          15,
				CoverageFloor:       50,
				MapeCeiling:         60,
				DefaultModelVersion: "v1.0.0",
			},
			Correlation: conf.CorrelationSettings{
				HighErrorThreshold: 15,
				MinSamplesPerValue: 3,
				TopValues:          3,
			},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }

// seedPending inserts a PENDING record for entityID at the given target time
func seedPending(t *testing.T, ds *datastore.SQLiteStore, entityID string, target time.Time, predicted float64) datastore.PredictionRecord {
	t.Helper()

	record := datastore.PredictionRecord{
		EntityID:         entityID,
		PredictionTime:   target.Add(-2 * time.Hour),
		TargetTime:       target,
		PredictedValue:   predicted,
		ComparisonStatus: datastore.StatusPending,
		PredictionType:   "hourly",
		ModelVersion:     "v1.1.0",
	}
	require.NoError(t, ds.DB.Create(&record).Error)
	return record
}

// seedSample inserts one observed wait-time sample
func seedSample(t *testing.T, ds *datastore.SQLiteStore, entityID string, ts time.Time, wait *float64, operating bool) {
	t.Helper()

	sample := datastore.WaitTimeSample{
		EntityID:    entityID,
		Timestamp:   ts,
		WaitMinutes: wait,
		IsOperating: operating,
	}
	require.NoError(t, ds.DB.Create(&sample).Error)
}

// seedCompleted inserts a COMPLETED record carrying the given error values
func seedCompleted(t *testing.T, ds *datastore.SQLiteStore, entityID string, target time.Time, actual, absErr float64, pctErr *float64) datastore.PredictionRecord {
	t.Helper()

	record := datastore.PredictionRecord{
		EntityID:         entityID,
		PredictionTime:   target.Add(-time.Hour),
		TargetTime:       target,
		PredictedValue:   actual + absErr,
		ActualValue:      &actual,
		AbsoluteError:    &absErr,
		PercentageError:  pctErr,
		ComparisonStatus: datastore.StatusCompleted,
		PredictionType:   "hourly",
		ModelVersion:     "v1.1.0",
	}
	require.NoError(t, ds.DB.Create(&record).Error)
	return record
}

func TestLedgerRecordDefaultsToPending(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ledger := NewLedger(ds)

	now := time.Now()
	err := ledger.Record(&Prediction{
		EntityID:       "space-coaster",
		PredictionTime: now,
		TargetTime:     now.Add(time.Hour),
		PredictedValue: 35,
		ModelVersion:   "v1.1.0",
		PredictionType: "hourly",
	})
	require.NoError(t, err)

	var stored datastore.PredictionRecord
	require.NoError(t, ds.DB.First(&stored).Error)
	assert.Equal(t, datastore.StatusPending, stored.ComparisonStatus)
	assert.Nil(t, stored.ActualValue)
	assert.Nil(t, stored.AbsoluteError)
}

func TestLedgerRecordValidation(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ledger := NewLedger(ds)
	now := time.Now()

	tests := []struct {
		name       string
		prediction Prediction
	}{
		{
			name: "empty entity id",
			prediction: Prediction{
				PredictionTime: now,
				TargetTime:     now.Add(time.Hour),
				PredictedValue: 10,
			},
		},
		{
			name: "negative predicted value",
			prediction: Prediction{
				EntityID:       "a",
				PredictionTime: now,
				TargetTime:     now.Add(time.Hour),
				PredictedValue: -1,
			},
		},
		{
			name: "target not after prediction time",
			prediction: Prediction{
				EntityID:       "a",
				PredictionTime: now,
				TargetTime:     now,
				PredictedValue: 10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.Record(&tt.prediction)
			assert.Error(t, err)
		})
	}

	var count int64
	require.NoError(t, ds.DB.Model(&datastore.PredictionRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}
