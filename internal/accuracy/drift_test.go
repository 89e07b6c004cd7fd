// drift_test.go: drift classification and retrain recommendation tests
package accuracy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkfan/waitwatch-go/internal/datastore"
)

// capturePublisher records published drift alerts for assertions
type capturePublisher struct {
	snapshots []*DriftSnapshot
}

func (p *capturePublisher) PublishDriftAlert(_ context.Context, snapshot *DriftSnapshot) error {
	p.snapshots = append(p.snapshots, snapshot)
	return nil
}

// seedActiveModel registers an active model with the given training MAE
func seedActiveModel(t *testing.T, ds *datastore.SQLiteStore, version string, trainingMAE float64) {
	t.Helper()
	require.NoError(t, ds.SaveModel(&datastore.MLModel{
		Version:     version,
		TrainedAt:   time.Now().AddDate(0, -1, 0),
		IsActive:    true,
		TrainingMAE: trainingMAE,
	}))
}

// seedWindowErrors inserts count completed records with the same absolute
// error spread over the drift window
func seedWindowErrors(t *testing.T, ds *datastore.SQLiteStore, now time.Time, count int, absErr float64) {
	t.Helper()
	for i := range count {
		// varying actuals keep R2 defined, error stays constant
		actual := 20.0 + float64(i%5)
		pct := absErr / actual * 100
		seedCompleted(t, ds, "a", now.Add(-time.Duration(i+1)*time.Hour), actual, absErr, &pct)
	}
}

func newDriftFixture(t *testing.T) (*datastore.SQLiteStore, *DriftMonitor, *capturePublisher) {
	t.Helper()
	ds := newTestStore(t)
	settings := testSettings()
	publisher := &capturePublisher{}
	monitor := NewDriftMonitor(settings, ds, NewAggregator(settings, ds), publisher, nil)
	return ds, monitor, publisher
}

func TestDriftCriticalAtThirtyPercent(t *testing.T) {
	t.Parallel()
	ds, monitor, publisher := newDriftFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedActiveModel(t, ds, "v1.1.0", 10)
	seedWindowErrors(t, ds, now, 12, 13) // live MAE 13 vs baseline 10 = 30% drift

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DriftStatusCritical, snapshot.Status)
	require.NotNil(t, snapshot.DriftPercent)
	assert.InDelta(t, 30, *snapshot.DriftPercent, 0.001)
	assert.Equal(t, "v1.1.0", snapshot.ModelVersion)
	assert.True(t, snapshot.ShouldRetrain)
	assert.Contains(t, snapshot.Reasons, ReasonMAEDegraded)

	require.Len(t, publisher.snapshots, 1)
	assert.Equal(t, DriftStatusCritical, publisher.snapshots[0].Status)
}

func TestDriftWarningBand(t *testing.T) {
	t.Parallel()
	ds, monitor, publisher := newDriftFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedActiveModel(t, ds, "v1.1.0", 10)
	seedWindowErrors(t, ds, now, 12, 12.5) // 25% drift

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DriftStatusWarning, snapshot.Status)
	require.NotNil(t, snapshot.DriftPercent)
	assert.InDelta(t, 25, *snapshot.DriftPercent, 0.001)
	require.Len(t, publisher.snapshots, 1)
}

func TestDriftHealthy(t *testing.T) {
	t.Parallel()
	ds, monitor, publisher := newDriftFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedActiveModel(t, ds, "v1.1.0", 10)
	seedWindowErrors(t, ds, now, 12, 10.5) // 5% drift

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DriftStatusHealthy, snapshot.Status)
	assert.False(t, snapshot.ShouldRetrain)
	assert.Empty(t, publisher.snapshots)
}

func TestDriftEmptyRegistryFallsBack(t *testing.T) {
	t.Parallel()
	ds, monitor, publisher := newDriftFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedWindowErrors(t, ds, now, 12, 8)

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DriftStatusUnknown, snapshot.Status)
	assert.Equal(t, "v1.0.0", snapshot.ModelVersion)
	assert.Nil(t, snapshot.BaselineMAE)
	assert.Nil(t, snapshot.DriftPercent)
	assert.Empty(t, publisher.snapshots)
}

func TestDriftRetrainOnCeilingsWithoutDrift(t *testing.T) {
	t.Parallel()
	ds, monitor, _ := newDriftFixture(t)

	// live MAE above the absolute ceiling despite a bad baseline hiding drift
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedActiveModel(t, ds, "v1.1.0", 18)
	seedWindowErrors(t, ds, now, 12, 16)

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DriftStatusHealthy, snapshot.Status)
	assert.True(t, snapshot.ShouldRetrain)
	assert.Contains(t, snapshot.Reasons, ReasonMAECeiling)
	assert.NotContains(t, snapshot.Reasons, ReasonMAEDegraded)
}

func TestDriftLowCoverageRecommendsRetrain(t *testing.T) {
	t.Parallel()
	ds, monitor, _ := newDriftFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedActiveModel(t, ds, "v1.1.0", 10)
	seedWindowErrors(t, ds, now, 12, 10)
	// flood the window with unmatched records to sink coverage below 50%
	for i := range 20 {
		seedPending(t, ds, "b", now.Add(-time.Duration(i+1)*time.Hour), 30)
	}

	snapshot, err := monitor.evaluateAt(context.Background(), now)
	require.NoError(t, err)

	assert.Less(t, snapshot.Coverage, 50.0)
	assert.True(t, snapshot.ShouldRetrain)
	assert.Contains(t, snapshot.Reasons, ReasonLowCoverage)
}

func TestDriftEmptyWindowStaysUnknown(t *testing.T) {
	t.Parallel()
	ds, monitor, publisher := newDriftFixture(t)

	seedActiveModel(t, ds, "v1.1.0", 10)

	snapshot, err := monitor.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DriftStatusUnknown, snapshot.Status)
	assert.Zero(t, snapshot.SampleCount)
	assert.False(t, snapshot.ShouldRetrain)
	assert.Empty(t, publisher.snapshots)
}
