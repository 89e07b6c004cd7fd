// internal/api/v2/accuracy_test.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
)

func newTestController(t *testing.T) (*Controller, *datastore.SQLiteStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&datastore.PredictionRecord{}, &datastore.WaitTimeSample{}, &datastore.MLModel{}))
	ds := &datastore.SQLiteStore{DataStore: datastore.DataStore{DB: db}}

	settings := &conf.Settings{
		Accuracy: conf.AccuracySettings{
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

	aggregator := accuracy.NewAggregator(settings, ds)
	driftMonitor := accuracy.NewDriftMonitor(settings, ds, aggregator, nil, nil)
	correlator := accuracy.NewCorrelator(settings, ds)

	controller := New(echo.New(), ds, settings, aggregator, driftMonitor, correlator)
	return controller, ds
}

// seedCompleted inserts one COMPLETED record inside the default window
func seedCompleted(t *testing.T, ds *datastore.SQLiteStore, entityID string, absErr float64) {
	t.Helper()

	actual := 20.0
	pct := absErr / actual * 100
	record := datastore.PredictionRecord{
		EntityID:         entityID,
		PredictionTime:   time.Now().Add(-3 * time.Hour),
		TargetTime:       time.Now().Add(-2 * time.Hour),
		PredictedValue:   actual + absErr,
		ActualValue:      &actual,
		AbsoluteError:    &absErr,
		PercentageError:  &pct,
		ComparisonStatus: datastore.StatusCompleted,
		PredictionType:   "hourly",
	}
	require.NoError(t, ds.DB.Create(&record).Error)
}

func doRequest(t *testing.T, c *Controller, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestGetAccuracySummary(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	for range 12 {
		seedCompleted(t, ds, "space-coaster", 4)
	}

	rec := doRequest(t, controller, "/api/v2/accuracy/summary?days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary accuracy.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 12, summary.SampleCount)
	assert.InDelta(t, 4, summary.MAE, 0.001)
	assert.Equal(t, accuracy.BadgeExcellent, summary.Badge)
	assert.InDelta(t, 100, summary.Coverage, 0.001)
}

func TestGetAccuracySummaryPerEntity(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	seedCompleted(t, ds, "a", 4)
	seedCompleted(t, ds, "b", 20)

	rec := doRequest(t, controller, "/api/v2/accuracy/summary?entity_id=a")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary accuracy.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "a", summary.EntityID)
	assert.Equal(t, 1, summary.SampleCount)
	assert.InDelta(t, 4, summary.MAE, 0.001)
}

func TestGetPerformers(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	for range 3 {
		seedCompleted(t, ds, "steady", 4)
		seedCompleted(t, ds, "wild", 25)
	}

	rec := doRequest(t, controller, "/api/v2/accuracy/performers?top=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var performers accuracy.Performers
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &performers))
	require.Len(t, performers.Best, 1)
	assert.Equal(t, "steady", performers.Best[0].EntityID)
	require.Len(t, performers.Worst, 1)
	assert.Equal(t, "wild", performers.Worst[0].EntityID)
}

func TestGetDriftStatusWithoutModel(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	seedCompleted(t, ds, "a", 8)

	rec := doRequest(t, controller, "/api/v2/accuracy/drift")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot accuracy.DriftSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, accuracy.DriftStatusUnknown, snapshot.Status)
	assert.Equal(t, "v1.0.0", snapshot.ModelVersion)
}

func TestGetActiveModel(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	rec := doRequest(t, controller, "/api/v2/accuracy/model")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, ds.SaveModel(&datastore.MLModel{
		Version:     "v1.1.0",
		TrainedAt:   time.Now(),
		IsActive:    true,
		TrainingMAE: 7.5,
	}))

	rec = doRequest(t, controller, "/api/v2/accuracy/model")
	require.Equal(t, http.StatusOK, rec.Code)

	var model ModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, "v1.1.0", model.Version)
	assert.InDelta(t, 7.5, model.TrainingMAE, 0.001)
}

func TestGetCompletedErrorsValidation(t *testing.T) {
	t.Parallel()
	controller, _ := newTestController(t)

	rec := doRequest(t, controller, "/api/v2/accuracy/errors?start=not-a-time")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	start := time.Now().Format(time.RFC3339)
	end := time.Now().Add(-time.Hour).Format(time.RFC3339)
	rec = doRequest(t, controller, fmt.Sprintf("/api/v2/accuracy/errors?start=%s&end=%s", start, end))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCompletedErrorsExport(t *testing.T) {
	t.Parallel()
	controller, ds := newTestController(t)

	seedCompleted(t, ds, "a", 5)

	rec := doRequest(t, controller, "/api/v2/accuracy/errors")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []datastore.PredictionError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].EntityID)
	assert.InDelta(t, 5, rows[0].AbsoluteError, 0.001)
}
