// correlator.go: links high prediction errors to the feature values the
// forecast was made with
package accuracy

import (
	"fmt"
	"sort"
	"time"

	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
)

// Feature names reported by the correlator.
const (
	FeatureHour        = "hour"
	FeatureDayOfWeek   = "day_of_week"
	FeatureIsWeekend   = "is_weekend"
	FeatureWeatherCode = "weather_code"
	FeatureIsRaining   = "is_raining"
	FeatureTemperature = "temperature_band"
)

// FeatureValueStats holds the error profile of one feature value.
type FeatureValueStats struct {
	Value         string  `json:"value"`
	Count         int     `json:"count"`
	MeanAbsError  float64 `json:"mean_abs_error"`
	HighErrorRate float64 `json:"high_error_rate"`
}

// CorrelationReport summarizes which feature values co-occur with high
// prediction errors over a window.
type CorrelationReport struct {
	Since              time.Time                      `json:"since"`
	HighErrorThreshold float64                        `json:"high_error_threshold"`
	SampleCount        int                            `json:"sample_count"`
	Features           map[string][]FeatureValueStats `json:"features"`
	Insights           []string                       `json:"insights"`
}

// Correlator groups completed predictions by the feature values captured at
// prediction time and surfaces the values with the worst error profiles.
type Correlator struct {
	db       datastore.Interface
	settings *conf.Settings
}

// NewCorrelator creates a correlator over the given store.
func NewCorrelator(settings *conf.Settings, db datastore.Interface) *Correlator {
	return &Correlator{db: db, settings: settings}
}

// featureAccumulator collects per-value sums for one feature.
type featureAccumulator struct {
	count     map[string]int
	sumAbs    map[string]float64
	highCount map[string]int
}

func newFeatureAccumulator() *featureAccumulator {
	return &featureAccumulator{
		count:     make(map[string]int),
		sumAbs:    make(map[string]float64),
		highCount: make(map[string]int),
	}
}

func (fa *featureAccumulator) add(value string, absErr, threshold float64) {
	fa.count[value]++
	fa.sumAbs[value] += absErr
	if absErr >= threshold {
		fa.highCount[value]++
	}
}

// stats flattens the accumulator into per-value statistics, worst high-error
// rate first, dropping values below the sample floor.
func (fa *featureAccumulator) stats(minSamples int) []FeatureValueStats {
	out := make([]FeatureValueStats, 0, len(fa.count))
	for value, n := range fa.count {
		if n < minSamples {
			continue
		}
		out = append(out, FeatureValueStats{
			Value:         value,
			Count:         n,
			MeanAbsError:  fa.sumAbs[value] / float64(n),
			HighErrorRate: float64(fa.highCount[value]) / float64(n) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HighErrorRate != out[j].HighErrorRate {
			return out[i].HighErrorRate > out[j].HighErrorRate
		}
		return out[i].MeanAbsError > out[j].MeanAbsError
	})
	return out
}

// Correlate computes the feature-error report for the window starting at
// since. An empty entityID means system wide, a threshold at or below zero
// falls back to the configured high-error threshold. Records without an
// error value or without a feature snapshot are skipped per feature.
func (c *Correlator) Correlate(since time.Time, entityID string, threshold float64) (*CorrelationReport, error) {
	cfg := c.settings.Accuracy.Correlation
	if threshold <= 0 {
		threshold = cfg.HighErrorThreshold
	}

	records, err := c.db.GetCompletedPredictions(since, entityID)
	if err != nil {
		return nil, errors.New(err).
			Component("accuracy").
			Category(errors.CategoryAggregation).
			Context("operation", "correlate").
			Build()
	}

	accumulators := map[string]*featureAccumulator{
		FeatureHour:        newFeatureAccumulator(),
		FeatureDayOfWeek:   newFeatureAccumulator(),
		FeatureIsWeekend:   newFeatureAccumulator(),
		FeatureWeatherCode: newFeatureAccumulator(),
		FeatureIsRaining:   newFeatureAccumulator(),
		FeatureTemperature: newFeatureAccumulator(),
	}

	sampleCount := 0
	for i := range records {
		r := &records[i]
		if r.AbsoluteError == nil {
			continue
		}
		sampleCount++
		absErr := *r.AbsoluteError
		f := &r.Features

		if f.Hour != nil {
			accumulators[FeatureHour].add(fmt.Sprintf("%02d", *f.Hour), absErr, threshold)
		}
		if f.DayOfWeek != nil {
			accumulators[FeatureDayOfWeek].add(fmt.Sprintf("%d", *f.DayOfWeek), absErr, threshold)
		}
		if f.IsWeekend != nil {
			accumulators[FeatureIsWeekend].add(fmt.Sprintf("%t", *f.IsWeekend), absErr, threshold)
		}
		if f.WeatherCode != nil {
			accumulators[FeatureWeatherCode].add(fmt.Sprintf("%d", *f.WeatherCode), absErr, threshold)
		}
		if f.IsRaining != nil {
			accumulators[FeatureIsRaining].add(fmt.Sprintf("%t", *f.IsRaining), absErr, threshold)
		}
		if f.Temperature != nil {
			accumulators[FeatureTemperature].add(temperatureBand(*f.Temperature), absErr, threshold)
		}
	}

	report := &CorrelationReport{
		Since:              since,
		HighErrorThreshold: threshold,
		SampleCount:        sampleCount,
		Features:           make(map[string][]FeatureValueStats, len(accumulators)),
	}

	for name, acc := range accumulators {
		report.Features[name] = acc.stats(cfg.MinSamplesPerValue)
	}

	report.Insights = buildInsights(report.Features, cfg.TopValues)

	return report, nil
}

// temperatureBand buckets a temperature in Celsius into a coarse band so the
// continuous feature groups like the categorical ones.
func temperatureBand(celsius float64) string {
	switch {
	case celsius < 10:
		return "cold"
	case celsius < 20:
		return "mild"
	case celsius < 30:
		return "warm"
	default:
		return "hot"
	}
}

// buildInsights renders the worst feature values into human-readable lines,
// at most topValues per feature and only where high errors actually occur.
func buildInsights(features map[string][]FeatureValueStats, topValues int) []string {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var insights []string
	for _, name := range names {
		values := features[name]
		limit := min(topValues, len(values))
		for _, v := range values[:limit] {
			if v.HighErrorRate == 0 {
				continue
			}
			insights = append(insights, fmt.Sprintf(
				"%s=%s: %.0f%% of %d predictions exceed the error threshold (MAE %.1f)",
				name, v.Value, v.HighErrorRate, v.Count, v.MeanAbsError))
		}
	}
	return insights
}
