// Package metrics provides accuracy pipeline metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AccuracyMetrics contains Prometheus metrics for the prediction accuracy
// pipeline: comparison runs, retention sweeps and drift evaluation.
type AccuracyMetrics struct {
	registry *prometheus.Registry

	// Comparison run metrics
	comparisonRunsTotal     *prometheus.CounterVec
	comparisonOutcomesTotal *prometheus.CounterVec
	comparisonDuration      prometheus.Histogram

	// Retention sweeper metrics
	sweeperRunsTotal    *prometheus.CounterVec
	sweeperDeletedTotal *prometheus.CounterVec

	// Drift monitor metrics
	driftPercentGauge prometheus.Gauge
	rollingMAEGauge   prometheus.Gauge
	coverageGauge     prometheus.Gauge
	driftAlertsTotal  *prometheus.CounterVec
}

// NewAccuracyMetrics creates and registers new accuracy metrics
func NewAccuracyMetrics(registry *prometheus.Registry) (*AccuracyMetrics, error) {
	m := &AccuracyMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *AccuracyMetrics) initMetrics() error {
	m.comparisonRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accuracy_comparison_runs_total",
			Help: "Total number of prediction comparison runs",
		},
		[]string{"status"}, // status: success, empty, error
	)

	m.comparisonOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accuracy_comparison_outcomes_total",
			Help: "Total number of prediction records processed by comparison runs",
		},
		[]string{"outcome"}, // outcome: completed, closure, missed, retained
	)

	m.comparisonDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "accuracy_comparison_duration_seconds",
			Help: "Time taken by one comparison run",
			// Buckets cover batch comparison times: 10ms to ~40s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
	)

	m.sweeperRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accuracy_sweeper_runs_total",
			Help: "Total number of retention sweeper runs",
		},
		[]string{"status"}, // status: success, error
	)

	m.sweeperDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accuracy_sweeper_deleted_total",
			Help: "Total number of prediction records deleted by the retention sweeper",
		},
		[]string{"category"}, // category: unmatched, completed
	)

	m.driftPercentGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accuracy_drift_percent",
		Help: "Relative MAE degradation versus the active model's training baseline",
	})

	m.rollingMAEGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accuracy_rolling_mae_minutes",
		Help: "Mean absolute error over the drift evaluation window in minutes",
	})

	m.coverageGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accuracy_coverage_percent",
		Help: "Share of predictions successfully matched against actuals",
	})

	m.driftAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accuracy_drift_alerts_total",
			Help: "Total number of drift alerts raised",
		},
		[]string{"severity"}, // severity: warning, critical
	)

	return nil
}

// Describe implements the Collector interface
func (m *AccuracyMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.comparisonRunsTotal.Describe(ch)
	m.comparisonOutcomesTotal.Describe(ch)
	m.comparisonDuration.Describe(ch)
	m.sweeperRunsTotal.Describe(ch)
	m.sweeperDeletedTotal.Describe(ch)
	m.driftPercentGauge.Describe(ch)
	m.rollingMAEGauge.Describe(ch)
	m.coverageGauge.Describe(ch)
	m.driftAlertsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *AccuracyMetrics) Collect(ch chan<- prometheus.Metric) {
	m.comparisonRunsTotal.Collect(ch)
	m.comparisonOutcomesTotal.Collect(ch)
	m.comparisonDuration.Collect(ch)
	m.sweeperRunsTotal.Collect(ch)
	m.sweeperDeletedTotal.Collect(ch)
	m.driftPercentGauge.Collect(ch)
	m.rollingMAEGauge.Collect(ch)
	m.coverageGauge.Collect(ch)
	m.driftAlertsTotal.Collect(ch)
}

// RecordComparisonRun records the terminal status of one comparison run
func (m *AccuracyMetrics) RecordComparisonRun(status string) {
	m.comparisonRunsTotal.WithLabelValues(status).Inc()
}

// RecordComparisonOutcomes records the per-outcome record counts of one run
func (m *AccuracyMetrics) RecordComparisonOutcomes(completed, closures, missed, retained int) {
	m.comparisonOutcomesTotal.WithLabelValues("completed").Add(float64(completed))
	m.comparisonOutcomesTotal.WithLabelValues("closure").Add(float64(closures))
	m.comparisonOutcomesTotal.WithLabelValues("missed").Add(float64(missed))
	m.comparisonOutcomesTotal.WithLabelValues("retained").Add(float64(retained))
}

// RecordComparisonDuration records the duration of one comparison run
func (m *AccuracyMetrics) RecordComparisonDuration(seconds float64) {
	m.comparisonDuration.Observe(seconds)
}

// RecordSweeperRun records the terminal status of one retention sweep
func (m *AccuracyMetrics) RecordSweeperRun(status string) {
	m.sweeperRunsTotal.WithLabelValues(status).Inc()
}

// RecordSweeperDeleted records rows deleted by the sweeper for one category
func (m *AccuracyMetrics) RecordSweeperDeleted(category string, count int64) {
	m.sweeperDeletedTotal.WithLabelValues(category).Add(float64(count))
}

// UpdateDriftGauges updates the drift evaluation gauges
func (m *AccuracyMetrics) UpdateDriftGauges(driftPercent, rollingMAE, coverage float64) {
	m.driftPercentGauge.Set(driftPercent)
	m.rollingMAEGauge.Set(rollingMAE)
	m.coverageGauge.Set(coverage)
}

// RecordDriftAlert records a raised drift alert by severity
func (m *AccuracyMetrics) RecordDriftAlert(severity string) {
	m.driftAlertsTotal.WithLabelValues(severity).Inc()
}
