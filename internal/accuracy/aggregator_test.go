// aggregator_test.go: statistics and badge tests
package accuracy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeMetricCorrectness(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	// errors 5, 10, 15 over varying actuals
	seedCompleted(t, ds, "a", base, 20, 5, floatPtr(25))
	seedCompleted(t, ds, "a", base.Add(time.Hour), 30, 10, floatPtr(100.0/3))
	seedCompleted(t, ds, "a", base.Add(2*time.Hour), 40, 15, floatPtr(37.5))

	summary, err := aggregator.Summarize(base.AddDate(0, 0, -1), "")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SampleCount)
	assert.InDelta(t, 10, summary.MAE, 0.001)
	assert.InDelta(t, math.Sqrt((25+100+225)/3.0), summary.RMSE, 0.001)
	require.NotNil(t, summary.MAPE)
	assert.InDelta(t, (25+100.0/3+37.5)/3, *summary.MAPE, 0.001)
	require.NotNil(t, summary.R2)
	// SS_res = 350, SS_tot over actuals {20,30,40} = 200
	assert.InDelta(t, 1-350.0/200, *summary.R2, 0.001)
}

func TestSummarizeCoverage(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, ds, "a", base, 20, 5, floatPtr(25))
	seedPending(t, ds, "a", base.Add(time.Hour), 30)
	seedPending(t, ds, "b", base.Add(2*time.Hour), 30)
	seedPending(t, ds, "b", base.Add(3*time.Hour), 30)

	summary, err := aggregator.Summarize(base.AddDate(0, 0, -1), "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, summary.Total)
	assert.EqualValues(t, 1, summary.Completed)
	assert.InDelta(t, 25, summary.Coverage, 0.001)
}

func TestSummarizeZeroVarianceActualsScoreZeroR2(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, ds, "a", base, 20, 5, floatPtr(25))
	seedCompleted(t, ds, "a", base.Add(time.Hour), 20, 3, floatPtr(15))

	summary, err := aggregator.Summarize(base.AddDate(0, 0, -1), "")
	require.NoError(t, err)
	require.NotNil(t, summary.R2)
	assert.Zero(t, *summary.R2)
}

func TestSummarizeByPredictionType(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, ds, "a", base, 20, 4, floatPtr(20))
	seedCompleted(t, ds, "a", base.Add(time.Hour), 20, 8, floatPtr(40))
	seedPending(t, ds, "a", base.Add(2*time.Hour), 30)

	daily := seedCompleted(t, ds, "a", base.Add(3*time.Hour), 40, 20, floatPtr(50))
	require.NoError(t, ds.DB.Model(&daily).Update("prediction_type", "daily").Error)

	summary, err := aggregator.Summarize(base.AddDate(0, 0, -1), "")
	require.NoError(t, err)
	require.Len(t, summary.ByType, 2)

	hourly := summary.ByType["hourly"]
	require.NotNil(t, hourly)
	assert.EqualValues(t, 3, hourly.Total)
	assert.EqualValues(t, 2, hourly.Completed)
	assert.InDelta(t, 6, hourly.MAE, 0.001)

	dailyStats := summary.ByType["daily"]
	require.NotNil(t, dailyStats)
	assert.EqualValues(t, 1, dailyStats.Total)
	assert.InDelta(t, 20, dailyStats.MAE, 0.001)

	// entity-scoped summaries carry no breakdown
	scoped, err := aggregator.Summarize(base.AddDate(0, 0, -1), "a")
	require.NoError(t, err)
	assert.Nil(t, scoped.ByType)
}

func TestBadgeThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mae         float64
		sampleCount int
		want        string
	}{
		{"excellent with enough samples", 4.9, 12, BadgeExcellent},
		{"downgraded below sample floor", 4.9, 8, BadgeInsufficientData},
		{"good", 9.9, 20, BadgeGood},
		{"fair", 14.9, 20, BadgeFair},
		{"poor", 15.0, 20, BadgePoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, badgeForMAE(tt.mae, tt.sampleCount, 10))
		})
	}
}

func TestSummarizeEmptyWindow(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	summary, err := aggregator.Summarize(time.Now().AddDate(0, 0, -7), "")
	require.NoError(t, err)
	assert.Zero(t, summary.SampleCount)
	assert.Zero(t, summary.Coverage)
	assert.Nil(t, summary.MAPE)
	assert.Nil(t, summary.R2)
	assert.Equal(t, BadgeInsufficientData, summary.Badge)
}

func TestSummarizeMemoizesResults(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	since := base.AddDate(0, 0, -1)
	seedCompleted(t, ds, "a", base, 20, 5, floatPtr(25))

	first, err := aggregator.Summarize(since, "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.SampleCount)

	// new row is invisible until the cache is flushed
	seedCompleted(t, ds, "a", base.Add(time.Hour), 20, 5, floatPtr(25))

	cached, err := aggregator.Summarize(since, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.SampleCount)

	aggregator.Flush()
	fresh, err := aggregator.Summarize(since, "")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.SampleCount)
}

func TestTopPerformers(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		seedCompleted(t, ds, "steady", base.Add(time.Duration(i)*time.Hour), 20, 4, floatPtr(20))
		seedCompleted(t, ds, "middling", base.Add(time.Duration(i)*time.Hour), 20, 12, floatPtr(60))
		seedCompleted(t, ds, "wild", base.Add(time.Duration(i)*time.Hour), 20, 25, floatPtr(125))
	}
	// below the per-entity sample floor of 3
	seedCompleted(t, ds, "sparse", base, 20, 1, floatPtr(5))

	performers, err := aggregator.TopPerformers(base.AddDate(0, 0, -1), 2)
	require.NoError(t, err)

	require.Len(t, performers.Best, 2)
	assert.Equal(t, "steady", performers.Best[0].EntityID)
	assert.Equal(t, "middling", performers.Best[1].EntityID)

	require.Len(t, performers.Worst, 2)
	assert.Equal(t, "wild", performers.Worst[0].EntityID)
	assert.Equal(t, "middling", performers.Worst[1].EntityID)
}

func TestErrorPatterns(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	aggregator := NewAggregator(testSettings(), ds)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // a Monday
	seedCompleted(t, ds, "a", day.Add(9*time.Hour), 20, 4, floatPtr(20))
	seedCompleted(t, ds, "a", day.Add(9*time.Hour+30*time.Minute), 20, 8, floatPtr(40))
	seedCompleted(t, ds, "a", day.Add(17*time.Hour), 20, 20, floatPtr(100))

	patterns, err := aggregator.ErrorPatterns(day.AddDate(0, 0, -7))
	require.NoError(t, err)

	require.Len(t, patterns.Hourly, 2)
	assert.Equal(t, 9, patterns.Hourly[0].Period)
	assert.InDelta(t, 6, patterns.Hourly[0].MeanAbsError, 0.001)
	assert.Equal(t, 17, patterns.Hourly[1].Period)

	require.Len(t, patterns.DayOfWeek, 1)
	assert.Equal(t, 1, patterns.DayOfWeek[0].Period) // Monday
}
