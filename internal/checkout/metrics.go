package checkout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OutcomesTotal  *prometheus.CounterVec
	PaymentLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		OutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_checkout_outcomes_total",
			Help: "Checkout requests by terminal outcome",
		}, []string{"outcome"}),
		PaymentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgepay_checkout_payment_seconds",
			Help:    "Payment capture latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordOutcome(outcome string) {
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePaymentLatency(d time.Duration) {
	m.PaymentLatency.Observe(d.Seconds())
}
