// Package metrics exposes Prometheus instrumentation for the reader
// fleet: operation counters, reconnect attempts, notification queue
// depth/drops, and per-session connectivity gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feig"

// Label names.
const (
	labelReader = "reader"
	labelOp     = "op"
	labelResult = "result"
)

// Collector holds every Prometheus metric the bridge exports: a struct of
// typed *Vec fields built once and registered against a single Registerer,
// then passed into the session/registry layer via a functional option.
type Collector struct {
	// OperationsTotal counts protocol-engine operations by reader,
	// operation kind (inventory/initialize/edit/clear/secure/unsecure/
	// analyze), and result (success/failure).
	OperationsTotal *prometheus.CounterVec

	// ReconnectAttemptsTotal counts ManagedSession reconnect attempts per
	// reader.
	ReconnectAttemptsTotal *prometheus.CounterVec

	// NotificationQueueDepth tracks each reader's pending notification
	// event count.
	NotificationQueueDepth *prometheus.GaugeVec

	// NotificationQueueDropsTotal counts events dropped because the
	// notification queue was at capacity.
	NotificationQueueDropsTotal *prometheus.CounterVec

	// SessionConnected is 1 when a reader's ManagedSession is connected,
	// 0 otherwise.
	SessionConnected *prometheus.GaugeVec
}

// NewCollector creates a Collector with every metric registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.OperationsTotal,
		c.ReconnectAttemptsTotal,
		c.NotificationQueueDepth,
		c.NotificationQueueDropsTotal,
		c.SessionConnected,
	)

	return c
}

func newMetrics() *Collector {
	readerLabels := []string{labelReader}
	opLabels := []string{labelReader, labelOp, labelResult}

	return &Collector{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total protocol-engine operations by reader, operation kind, and result.",
		}, opLabels),

		ReconnectAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total ManagedSession reconnect attempts per reader.",
		}, readerLabels),

		NotificationQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_depth",
			Help:      "Current depth of the per-reader notification event queue.",
		}, readerLabels),

		NotificationQueueDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_queue_drops_total",
			Help:      "Total notification events dropped because the queue was at capacity.",
		}, readerLabels),

		SessionConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_connected",
			Help:      "1 if the reader's managed session is connected, 0 otherwise.",
		}, readerLabels),
	}
}

// ObserveOperation records the outcome of one protocol-engine operation.
func (c *Collector) ObserveOperation(reader, op string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.OperationsTotal.WithLabelValues(reader, op, result).Inc()
}

// IncReconnectAttempt records one reconnect attempt for reader.
func (c *Collector) IncReconnectAttempt(reader string) {
	c.ReconnectAttemptsTotal.WithLabelValues(reader).Inc()
}

// SetNotificationQueueDepth sets the current notification queue depth for reader.
func (c *Collector) SetNotificationQueueDepth(reader string, depth int) {
	c.NotificationQueueDepth.WithLabelValues(reader).Set(float64(depth))
}

// IncNotificationQueueDrop records one dropped notification event for reader.
func (c *Collector) IncNotificationQueueDrop(reader string) {
	c.NotificationQueueDropsTotal.WithLabelValues(reader).Inc()
}

// SetSessionConnected sets the connectivity gauge for reader.
func (c *Collector) SetSessionConnected(reader string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	c.SessionConnected.WithLabelValues(reader).Set(v)
}
