package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
)

func newTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&datastore.PredictionRecord{}, &datastore.WaitTimeSample{}, &datastore.MLModel{})
	require.NoError(t, err)

	return &datastore.SQLiteStore{DataStore: datastore.DataStore{DB: db}}
}

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
		},
	}
}

func TestComparisonJobSweepsBeforeComparing(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	settings := testSettings()
	sweeper := accuracy.NewSweeper(settings, ds, nil)
	comparator := accuracy.NewComparator(settings, ds, nil)

	// a MISSED record past the retention horizon
	expired := datastore.PredictionRecord{
		EntityID:         "space-coaster",
		PredictionTime:   time.Now().AddDate(0, 0, -8).Add(-time.Hour),
		TargetTime:       time.Now().AddDate(0, 0, -8),
		PredictedValue:   40,
		ComparisonStatus: datastore.StatusMissed,
		PredictionType:   "hourly",
	}
	require.NoError(t, ds.DB.Create(&expired).Error)

	// a due PENDING record with a matching sample
	target := time.Now().Add(-time.Hour)
	actual := 30.0
	due := datastore.PredictionRecord{
		EntityID:         "space-coaster",
		PredictionTime:   target.Add(-2 * time.Hour),
		TargetTime:       target,
		PredictedValue:   40,
		ComparisonStatus: datastore.StatusPending,
		PredictionType:   "hourly",
	}
	require.NoError(t, ds.DB.Create(&due).Error)
	require.NoError(t, ds.DB.Create(&datastore.WaitTimeSample{
		EntityID:    "space-coaster",
		Timestamp:   target.Add(3 * time.Minute),
		WaitMinutes: &actual,
		IsOperating: true,
	}).Error)

	job := comparisonJob(sweeper, comparator)
	require.NoError(t, job(context.Background()))

	// the expired record is swept, the due one completed, in one pass
	var count int64
	require.NoError(t, ds.DB.Model(&datastore.PredictionRecord{}).
		Where("id = ?", expired.ID).Count(&count).Error)
	assert.Zero(t, count)

	var stored datastore.PredictionRecord
	require.NoError(t, ds.DB.First(&stored, due.ID).Error)
	assert.Equal(t, datastore.StatusCompleted, stored.ComparisonStatus)
}
