package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and gauges for the telemetry engine.
type Metrics struct {
	ReadingsAccepted *prometheus.CounterVec // label: source={push,feed}
	ReadingsRejected prometheus.Counter
	CurrentHeatIndex prometheus.Gauge

	// Broadcast fan-out metrics.
	BroadcastMessages prometheus.Counter
	SubscriberCount   prometheus.Gauge

	// Alert dispatch metrics.
	AlertsDispatched prometheus.Counter
	AlertsSuppressed prometheus.Counter
	AlertSendErrors  prometheus.Counter

	FeedErrors prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReadingsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "readings_accepted_total",
			Help:      "Total telemetry readings accepted, by ingestion source.",
		}, []string{"source"}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "readings_rejected_total",
			Help:      "Total readings rejected at validation.",
		}),
		CurrentHeatIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermasense",
			Name:      "current_heat_index_celsius",
			Help:      "Heat index derived from the most recently accepted reading.",
		}),
		BroadcastMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "broadcast_messages_total",
			Help:      "Total telemetry envelopes fanned out to subscribers.",
		}),
		SubscriberCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermasense",
			Name:      "subscriber_connections",
			Help:      "Currently open websocket subscriber connections.",
		}),
		AlertsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "alerts_dispatched_total",
			Help:      "Total qualifying alert events dispatched to recipients.",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "alerts_suppressed_total",
			Help:      "Alert events that qualified but had no recipients or no transport.",
		}),
		AlertSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "alert_send_errors_total",
			Help:      "Per-recipient notification send failures.",
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermasense",
			Name:      "feed_errors_total",
			Help:      "Feed read failures and malformed feed payloads.",
		}),
	}

	prometheus.MustRegister(
		m.ReadingsAccepted,
		m.ReadingsRejected,
		m.CurrentHeatIndex,
		m.BroadcastMessages,
		m.SubscriberCount,
		m.AlertsDispatched,
		m.AlertsSuppressed,
		m.AlertSendErrors,
		m.FeedErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReadingsAccepted:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "thermasense", Name: "readings_accepted_total"}, []string{"source"}),
		ReadingsRejected:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "readings_rejected_total"}),
		CurrentHeatIndex:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "thermasense", Name: "current_heat_index_celsius"}),
		BroadcastMessages: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "broadcast_messages_total"}),
		SubscriberCount:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "thermasense", Name: "subscriber_connections"}),
		AlertsDispatched:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "alerts_dispatched_total"}),
		AlertsSuppressed:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "alerts_suppressed_total"}),
		AlertSendErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "alert_send_errors_total"}),
		FeedErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "thermasense", Name: "feed_errors_total"}),
	}
}
