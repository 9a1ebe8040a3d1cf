// Package telemetry exposes Prometheus collectors for the chat engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat"

// Delivery modes used as label values on MessagesDelivered.
const (
	DeliveryModeDirect = "direct"
	DeliveryModeDrain  = "drain"
)

// Metrics groups every collector the engine updates.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ActiveConnections   prometheus.Gauge
	AttachedUsers       prometheus.Gauge
	MessagesDelivered   *prometheus.CounterVec
	MessagesQueued      prometheus.Counter
	ProtocolErrors      *prometheus.CounterVec
	DrainBatchSize      prometheus.Histogram
}

// NewMetrics constructs and registers the collectors. Registering twice
// against the same registerer reuses the existing collectors, so tests can
// share the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted transport connections.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Number of currently open connections.",
		}),
		AttachedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "attached_users",
			Help:      "Number of users with at least one attached session.",
		}),
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to a live session, partitioned by delivery mode.",
		}, []string{"mode"}),
		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "messages_queued_total",
			Help:      "Messages appended to the durable offline queue.",
		}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "errors_total",
			Help:      "Structured protocol errors returned to peers, partitioned by status.",
		}, []string{"status"}),
		DrainBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "drain_batch_size",
			Help:      "Number of queued messages drained per online notification.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}

	m.ConnectionsAccepted = registerCounter(reg, m.ConnectionsAccepted)
	m.ActiveConnections = registerGauge(reg, m.ActiveConnections)
	m.AttachedUsers = registerGauge(reg, m.AttachedUsers)
	m.MessagesDelivered = registerCounterVec(reg, m.MessagesDelivered)
	m.MessagesQueued = registerCounter(reg, m.MessagesQueued)
	m.ProtocolErrors = registerCounterVec(reg, m.ProtocolErrors)
	m.DrainBatchSize = registerHistogram(reg, m.DrainBatchSize)

	return m
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &already); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &already); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
	}
	return g
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &already); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &already); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
	}
	return h
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
		*target = already
		return true
	}
	return false
}
