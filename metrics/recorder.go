// Package metrics provides the pluggable metrics interface the Transport
// reports its request and connection-pool events through. It defines a
// generic interface implementable by any monitoring backend (Prometheus,
// OpenTelemetry, Datadog...) without pulling those dependencies into the
// core nfhttp package.
package metrics

import "time"

// Recorder receives every state transition that ends a request (success,
// timeout, error, cancel) plus connection-pool and cache-backend events.
type Recorder interface {
	// RecordRequest records one completed Transport attempt.
	// outcome is one of "success", "timeout", "error", "canceled".
	RecordRequest(method, outcome string, statusCode int, duration time.Duration)

	// RecordPoolEvent records a connection-pool lifecycle event.
	// event is one of "acquire", "release", "reap", "dial".
	RecordPoolEvent(event, host string)

	// RecordCacheOperation records a cache metadata/blob store operation.
	// operation is one of "get", "set", "delete"; result is e.g. "hit",
	// "miss", "success", "error".
	RecordCacheOperation(operation, backend, result string, duration time.Duration)

	// RecordCacheSize records the current size of a cache backend in bytes.
	RecordCacheSize(backend string, sizeBytes int64)

	// RecordHTTPResponseSize records the size of a response body.
	RecordHTTPResponseSize(cacheStatus string, sizeBytes int64)

	// RecordStaleResponse records a stale-while-revalidate or stale-if-error
	// response served in place of a failed revalidation.
	RecordStaleResponse(reason string)
}

// NoOpRecorder implements Recorder with no-op operations. It is the default
// recorder, giving zero overhead to callers who don't enable metrics.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordRequest(method, outcome string, statusCode int, duration time.Duration) {}
func (NoOpRecorder) RecordPoolEvent(event, host string)                                           {}
func (NoOpRecorder) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
}
func (NoOpRecorder) RecordCacheSize(backend string, sizeBytes int64)            {}
func (NoOpRecorder) RecordHTTPResponseSize(cacheStatus string, sizeBytes int64) {}
func (NoOpRecorder) RecordStaleResponse(reason string)                         {}

// DefaultRecorder is the no-op Recorder used when a layer isn't configured
// with one explicitly.
var DefaultRecorder Recorder = NoOpRecorder{}

var _ Recorder = NoOpRecorder{}
