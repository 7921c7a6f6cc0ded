package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordActionProcessed(kind, status string)
	RecordStreamRead(kind string, duration time.Duration)
	RecordQueueTask(queue, status string)
	RecordWebhookDelivery(status string)
	RecordDBQuery(operation, status string)
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	SetDBConnectionsActive(count float64)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordActionProcessed(kind, status string) {}
func (m *NoOpMetrics) RecordStreamRead(kind string, duration time.Duration) {}
func (m *NoOpMetrics) RecordQueueTask(queue, status string) {}
func (m *NoOpMetrics) RecordWebhookDelivery(status string) {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string) {}
func (m *NoOpMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64) {}
func (m *NoOpMetrics) Handler() http.Handler                { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordActionProcessed records one mod action moving through a pipeline stage
func RecordActionProcessed(kind, status string) {
	globalMetrics.RecordActionProcessed(kind, status)
}

// RecordStreamRead records one source fetch for a stream kind
func RecordStreamRead(kind string, duration time.Duration) {
	globalMetrics.RecordStreamRead(kind, duration)
}

// RecordQueueTask records the outcome of one queued unit
func RecordQueueTask(queue, status string) {
	globalMetrics.RecordQueueTask(queue, status)
}

// RecordWebhookDelivery records one alert delivery attempt
func RecordWebhookDelivery(status string) {
	globalMetrics.RecordWebhookDelivery(status)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}

// RecordHTTPRequest records one ops endpoint request
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, path, statusCode, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}
