// Package telemetry holds the SDK's self-monitoring metrics: counters and
// gauges describing the behavior of the ingestion pipeline itself (drops,
// flush outcomes, queue depth), registered against Prometheus so a host
// application can scrape its own SDK's health. This is separate from, and
// has no effect on, the logs/metrics the SDK ships to the ingestion
// endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use with a nil receiver: every method is a no-op when
// m == nil, so components can be built and tested without registering
// anything against Prometheus.
type Metrics struct {
	EventsAccepted    *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	BatchesSent       *prometheus.CounterVec
	BatchSendFailures *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
}

// New registers the SDK's self-monitoring metrics against reg. Pass a
// fresh prometheus.NewRegistry() for an isolated registry (recommended for
// an SDK embedded in a larger process). With a nil reg the collectors are
// created but not registered anywhere.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigilant_events_accepted_total",
			Help: "Events accepted by the SDK from producer calls, by kind.",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigilant_events_dropped_total",
			Help: "Events dropped by the SDK without being shipped, by kind and reason.",
		}, []string{"kind", "reason"}),
		BatchesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigilant_batches_sent_total",
			Help: "Batches successfully POSTed to the ingestion endpoint, by sender.",
		}, []string{"sender"}),
		BatchSendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigilant_batch_send_failures_total",
			Help: "Batches that failed to send, by sender and outcome.",
		}, []string{"sender", "outcome"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigilant_queue_depth",
			Help: "Approximate depth of an internal queue, by queue name.",
		}, []string{"queue"}),
	}
}

func (m *Metrics) EventAccepted(kind string) {
	if m == nil {
		return
	}
	m.EventsAccepted.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventDropped(kind, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) BatchSent(sender string) {
	if m == nil {
		return
	}
	m.BatchesSent.WithLabelValues(sender).Inc()
}

func (m *Metrics) BatchFailed(sender, outcome string) {
	if m == nil {
		return
	}
	m.BatchSendFailures.WithLabelValues(sender, outcome).Inc()
}

func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}
