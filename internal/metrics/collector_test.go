package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bookwaves/feig-rfid-bridge/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.OperationsTotal == nil {
		t.Error("OperationsTotal is nil")
	}
	if c.ReconnectAttemptsTotal == nil {
		t.Error("ReconnectAttemptsTotal is nil")
	}
	if c.NotificationQueueDepth == nil {
		t.Error("NotificationQueueDepth is nil")
	}
	if c.NotificationQueueDropsTotal == nil {
		t.Error("NotificationQueueDropsTotal is nil")
	}
	if c.SessionConnected == nil {
		t.Error("SessionConnected is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	_ = families
}

func TestObserveOperation(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObserveOperation("circ-1", "inventory", true)
	c.ObserveOperation("circ-1", "inventory", true)
	c.ObserveOperation("circ-1", "inventory", false)

	if got := counterValue(t, c.OperationsTotal, "circ-1", "inventory", "success"); got != 2 {
		t.Errorf("OperationsTotal success = %v, want 2", got)
	}
	if got := counterValue(t, c.OperationsTotal, "circ-1", "inventory", "failure"); got != 1 {
		t.Errorf("OperationsTotal failure = %v, want 1", got)
	}
}

func TestReconnectAttempts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncReconnectAttempt("circ-1")
	c.IncReconnectAttempt("circ-1")
	c.IncReconnectAttempt("circ-1")

	if got := counterValue(t, c.ReconnectAttemptsTotal, "circ-1"); got != 3 {
		t.Errorf("ReconnectAttemptsTotal = %v, want 3", got)
	}
}

func TestNotificationQueueGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetNotificationQueueDepth("circ-2", 42)
	if got := gaugeValue(t, c.NotificationQueueDepth, "circ-2"); got != 42 {
		t.Errorf("NotificationQueueDepth = %v, want 42", got)
	}

	c.IncNotificationQueueDrop("circ-2")
	c.IncNotificationQueueDrop("circ-2")
	if got := counterValue(t, c.NotificationQueueDropsTotal, "circ-2"); got != 2 {
		t.Errorf("NotificationQueueDropsTotal = %v, want 2", got)
	}
}

func TestSessionConnectedGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetSessionConnected("circ-3", true)
	if got := gaugeValue(t, c.SessionConnected, "circ-3"); got != 1 {
		t.Errorf("SessionConnected = %v, want 1", got)
	}

	c.SetSessionConnected("circ-3", false)
	if got := gaugeValue(t, c.SessionConnected, "circ-3"); got != 0 {
		t.Errorf("SessionConnected = %v, want 0", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
