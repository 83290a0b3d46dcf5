package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Deliveries      *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	ErrorReports    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepay_dispatch_deliveries_total",
			Help: "Sink delivery attempts by sink and result",
		}, []string{"sink", "result"}),
		DeliveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgepay_dispatch_delivery_seconds",
			Help:    "Sink delivery latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		ErrorReports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "edgepay_dispatch_error_reports_total",
			Help: "Error events sent to the error sink",
		}),
	}
}

func (m *Metrics) ObserveDelivery(sink string, d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Deliveries.WithLabelValues(sink, result).Inc()
	m.DeliveryLatency.WithLabelValues(sink).Observe(d.Seconds())
}

func (m *Metrics) RecordErrorReport() {
	m.ErrorReports.Inc()
}
