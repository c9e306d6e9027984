package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	records       *prometheus.CounterVec
	invalid       *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	scores        prometheus.Histogram
	walletsScored prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them on /metrics, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		records: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletscore_records_total",
				Help: "Transaction records seen, by status",
			},
			[]string{"status"},
		),
		invalid: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletscore_invalid_records_total",
				Help: "Dropped transaction records, by reason",
			},
			[]string{"reason"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletscore_runs_total",
				Help: "Scoring runs, by result",
			},
			[]string{"result"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletscore_run_duration_seconds",
				Help:    "Wall time of a scoring run",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		scores: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletscore_final_score",
				Help:    "Distribution of normalized wallet scores",
				Buckets: prometheus.LinearBuckets(100, 100, 10),
			},
		),
		walletsScored: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletscore_wallets_scored",
				Help: "Wallets scored in the latest run",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletscore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletscore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRecords(status string, n int) {
	if n > 0 {
		r.records.WithLabelValues(status).Add(float64(n))
	}
}

func (r *Recorder) RecordInvalid(reason string, n int) {
	if n > 0 {
		r.invalid.WithLabelValues(reason).Add(float64(n))
	}
}

func (r *Recorder) RecordRun(result string, seconds float64) {
	r.runs.WithLabelValues(result).Inc()
	r.runDuration.Observe(seconds)
}

func (r *Recorder) ObserveScore(score int) {
	r.scores.Observe(float64(score))
}

func (r *Recorder) SetWalletsScored(n int) {
	r.walletsScored.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
