// aggregator.go: statistical summaries over matched prediction records
package accuracy

import (
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
)

// Badge labels derived from MAE, worst to best.
const (
	BadgeExcellent        = "excellent"
	BadgeGood             = "good"
	BadgeFair             = "fair"
	BadgePoor             = "poor"
	BadgeInsufficientData = "insufficient_data"
)

// MAE thresholds in minutes for badge assignment.
const (
	badgeExcellentMAE = 5.0
	badgeGoodMAE      = 10.0
	badgeFairMAE      = 15.0
)

// Summary holds the accuracy statistics for one scope (system wide or a
// single entity) over a time window. MAPE is nil when no record in the
// window carries a percentage error, R2 is nil only for an empty window.
// ByType is populated on system-wide summaries only, keyed by prediction
// type ("hourly", "daily").
type Summary struct {
	EntityID    string              `json:"entity_id,omitempty"`
	Since       time.Time           `json:"since"`
	Total       int64               `json:"total_predictions"`
	Completed   int64               `json:"completed_predictions"`
	Coverage    float64             `json:"coverage_percent"`
	SampleCount int                 `json:"sample_count"`
	MAE         float64             `json:"mae"`
	RMSE        float64             `json:"rmse"`
	MAPE        *float64            `json:"mape,omitempty"`
	R2          *float64            `json:"r2,omitempty"`
	Badge       string              `json:"badge"`
	ByType      map[string]*Summary `json:"by_type,omitempty"`
}

// Performers holds entity rankings by MAE over a window.
type Performers struct {
	Best  []datastore.EntityErrorStats `json:"best"`
	Worst []datastore.EntityErrorStats `json:"worst"`
}

// Patterns holds error statistics bucketed by time of day and day of week.
type Patterns struct {
	Hourly    []datastore.PeriodErrorStats `json:"hourly"`
	DayOfWeek []datastore.PeriodErrorStats `json:"day_of_week"`
}

// Aggregator computes accuracy summaries on demand, memoizing results so the
// read API does not recompute on every request.
type Aggregator struct {
	db       datastore.Interface
	settings *conf.Settings
	cache    *gocache.Cache
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(settings *conf.Settings, db datastore.Interface) *Aggregator {
	ttl := time.Duration(settings.Accuracy.Aggregation.CacheTTLMinutes) * time.Minute
	return &Aggregator{
		db:       db,
		settings: settings,
		cache:    gocache.New(ttl, 2*ttl),
	}
}

// Summarize computes the accuracy summary for the window starting at since.
// An empty entityID means system wide.
func (a *Aggregator) Summarize(since time.Time, entityID string) (*Summary, error) {
	cacheKey := fmt.Sprintf("summary:%s:%d", entityID, since.Unix())
	if cached, found := a.cache.Get(cacheKey); found {
		return cached.(*Summary), nil
	}

	total, completed, err := a.db.CountPredictions(since, entityID)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("entity_id", entityID).
			Build()
	}

	records, err := a.db.GetCompletedPredictions(since, entityID)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("entity_id", entityID).
			Build()
	}

	summary := &Summary{
		EntityID:  entityID,
		Since:     since,
		Total:     total,
		Completed: completed,
	}
	if total > 0 {
		summary.Coverage = float64(completed) / float64(total) * 100
	}

	stats := computeErrorStats(records)
	summary.SampleCount = stats.count
	summary.MAE = stats.mae
	summary.RMSE = stats.rmse
	summary.MAPE = stats.mape
	summary.R2 = stats.r2
	summary.Badge = badgeForMAE(stats.mae, stats.count, a.settings.Accuracy.Aggregation.MinSamplesForBadge)

	if entityID == "" {
		byType, err := a.summarizeByType(since, records)
		if err != nil {
			return nil, err
		}
		summary.ByType = byType
	}

	a.cache.Set(cacheKey, summary, gocache.DefaultExpiration)
	return summary, nil
}

// summarizeByType builds the per-prediction-type breakdown of a system-wide
// summary. The completed records are already in memory, only the per-type
// counts need another query.
func (a *Aggregator) summarizeByType(since time.Time, records []datastore.PredictionRecord) (map[string]*Summary, error) {
	counts, err := a.db.CountPredictionsByType(since)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "count_by_type").
			Build()
	}
	if len(counts) == 0 {
		return nil, nil
	}

	grouped := make(map[string][]datastore.PredictionRecord)
	for _, r := range records {
		grouped[r.PredictionType] = append(grouped[r.PredictionType], r)
	}

	minSamples := a.settings.Accuracy.Aggregation.MinSamplesForBadge
	byType := make(map[string]*Summary, len(counts))
	for _, tc := range counts {
		sub := &Summary{
			Since:     since,
			Total:     tc.Total,
			Completed: tc.Completed,
		}
		if tc.Total > 0 {
			sub.Coverage = float64(tc.Completed) / float64(tc.Total) * 100
		}
		stats := computeErrorStats(grouped[tc.PredictionType])
		sub.SampleCount = stats.count
		sub.MAE = stats.mae
		sub.RMSE = stats.rmse
		sub.MAPE = stats.mape
		sub.R2 = stats.r2
		sub.Badge = badgeForMAE(stats.mae, stats.count, minSamples)
		byType[tc.PredictionType] = sub
	}

	return byType, nil
}

// TopPerformers returns the entities with the lowest and highest MAE over the
// window, limited to topN each. Entities below the per-entity sample floor
// are excluded.
func (a *Aggregator) TopPerformers(since time.Time, topN int) (*Performers, error) {
	cacheKey := fmt.Sprintf("performers:%d:%d", since.Unix(), topN)
	if cached, found := a.cache.Get(cacheKey); found {
		return cached.(*Performers), nil
	}

	stats, err := a.db.GetEntityErrorStats(since, a.settings.Accuracy.Aggregation.MinSamplesPerEntity)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "top_performers").
			Build()
	}

	performers := &Performers{}
	if len(stats) <= topN {
		performers.Best = stats
	} else {
		performers.Best = stats[:topN]
	}

	// stats is ordered best first, walk the tail backwards for worst first
	worstCount := min(topN, len(stats))
	for i := 0; i < worstCount; i++ {
		performers.Worst = append(performers.Worst, stats[len(stats)-1-i])
	}

	a.cache.Set(cacheKey, performers, gocache.DefaultExpiration)
	return performers, nil
}

// ErrorPatterns returns error statistics bucketed by hour of day and day of
// week since the given time.
func (a *Aggregator) ErrorPatterns(since time.Time) (*Patterns, error) {
	cacheKey := fmt.Sprintf("patterns:%d", since.Unix())
	if cached, found := a.cache.Get(cacheKey); found {
		return cached.(*Patterns), nil
	}

	hourly, err := a.db.GetHourlyErrorStats(since)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "hourly_patterns").
			Build()
	}

	daily, err := a.db.GetDayOfWeekErrorStats(since)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "day_of_week_patterns").
			Build()
	}

	patterns := &Patterns{Hourly: hourly, DayOfWeek: daily}
	a.cache.Set(cacheKey, patterns, gocache.DefaultExpiration)
	return patterns, nil
}

// DailyTrend returns one MAE value per day since the given time.
func (a *Aggregator) DailyTrend(since time.Time) ([]datastore.DailyMAE, error) {
	cacheKey := fmt.Sprintf("daily:%d", since.Unix())
	if cached, found := a.cache.Get(cacheKey); found {
		return cached.([]datastore.DailyMAE), nil
	}

	trend, err := a.db.GetDailyMAE(since)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "daily_trend").
			Build()
	}

	a.cache.Set(cacheKey, trend, gocache.DefaultExpiration)
	return trend, nil
}

// Flush drops all memoized aggregates. Used after bulk mutations in tests.
func (a *Aggregator) Flush() {
	a.cache.Flush()
}

// errorStats holds the intermediate error statistics of one record set.
type errorStats struct {
	count int
	mae   float64
	rmse  float64
	mape  *float64
	r2    *float64
}

// computeErrorStats derives MAE, RMSE, MAPE and R2 from completed records.
// MAPE averages only records carrying a percentage error, which excludes
// zero-wait actuals. R2 is 0 when the actuals have no variance, nil only
// when no records are usable.
func computeErrorStats(records []datastore.PredictionRecord) errorStats {
	var stats errorStats
	var sumAbs, sumSq, sumActual float64
	var sumPct float64
	var pctCount int

	usable := make([]*datastore.PredictionRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.AbsoluteError == nil || r.ActualValue == nil {
			continue
		}
		usable = append(usable, r)
		sumAbs += *r.AbsoluteError
		sumSq += *r.AbsoluteError * *r.AbsoluteError
		sumActual += *r.ActualValue
		if r.PercentageError != nil {
			sumPct += *r.PercentageError
			pctCount++
		}
	}

	stats.count = len(usable)
	if stats.count == 0 {
		return stats
	}

	n := float64(stats.count)
	stats.mae = sumAbs / n
	stats.rmse = math.Sqrt(sumSq / n)

	if pctCount > 0 {
		mape := sumPct / float64(pctCount)
		stats.mape = &mape
	}

	meanActual := sumActual / n
	var ssTot float64
	for _, r := range usable {
		d := *r.ActualValue - meanActual
		ssTot += d * d
	}
	// Constant actuals carry no variance to explain, score that as zero
	// rather than leaving the metric undefined.
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sumSq/ssTot
	}
	stats.r2 = &r2

	return stats
}

// badgeForMAE maps a MAE value to its badge, downgrading to insufficient_data
// below the sample floor regardless of how good the MAE looks.
func badgeForMAE(mae float64, sampleCount, minSamples int) string {
	if sampleCount < minSamples {
		return BadgeInsufficientData
	}
	switch {
	case mae < badgeExcellentMAE:
		return BadgeExcellent
	case mae < badgeGoodMAE:
		return BadgeGood
	case mae < badgeFairMAE:
		return BadgeFair
	default:
		return BadgePoor
	}
}
