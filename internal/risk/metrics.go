package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScoreHistogram prometheus.Histogram
	LookupFailures *prometheus.CounterVec
	LookupSkipped  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		ScoreHistogram: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgepay_risk_score",
			Help:    "Distribution of computed fraud risk scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		LookupFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_risk_lookup_failures_total",
			Help: "Risk sub-lookups that failed or timed out (scored as zero risk)",
		}, []string{"source"}),
		LookupSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_risk_lookup_skipped_total",
			Help: "Risk sub-lookups skipped because the circuit breaker was open",
		}, []string{"source"}),
	}
}

func (m *Metrics) ObserveScore(score float64) {
	m.ScoreHistogram.Observe(score)
}

func (m *Metrics) RecordLookupFailure(source string) {
	m.LookupFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordLookupSkipped(source string) {
	m.LookupSkipped.WithLabelValues(source).Inc()
}
