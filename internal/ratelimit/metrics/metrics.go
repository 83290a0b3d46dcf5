package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal *prometheus.CounterVec
	DeniedTotal *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_ratelimit_checks_total",
			Help: "Total number of rate limit checks by purpose",
		}, []string{"purpose"}),
		DeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_ratelimit_denied_total",
			Help: "Total number of denied requests by purpose",
		}, []string{"purpose"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgepay_ratelimit_store_errors_total",
			Help: "Total number of window store failures (checks fail open)",
		}),
	}
}

func (m *Metrics) RecordCheck(purpose string) {
	m.ChecksTotal.WithLabelValues(purpose).Inc()
}

func (m *Metrics) RecordDenied(purpose string) {
	m.DeniedTotal.WithLabelValues(purpose).Inc()
}

func (m *Metrics) RecordStoreError() {
	m.StoreErrors.Inc()
}
