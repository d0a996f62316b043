package reader

// MetricsReporter receives operational telemetry from a ManagedSession and
// its protocol engine. The reader package declares the interface it needs
// rather than importing internal/metrics directly, so the session layer
// stays decoupled from the concrete Prometheus collector.
type MetricsReporter interface {
	ObserveOperation(reader, op string, success bool)
	IncReconnectAttempt(reader string)
	SetNotificationQueueDepth(reader string, depth int)
	IncNotificationQueueDrop(reader string)
	SetSessionConnected(reader string, connected bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, bool)  {}
func (noopMetrics) IncReconnectAttempt(string)             {}
func (noopMetrics) SetNotificationQueueDepth(string, int)  {}
func (noopMetrics) IncNotificationQueueDrop(string)        {}
func (noopMetrics) SetSessionConnected(string, bool)       {}

// defaultMetrics is used when no MetricsReporter is supplied.
var defaultMetrics MetricsReporter = noopMetrics{}
