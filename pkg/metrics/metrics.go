// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks assistant response streaming duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "Assistant response streaming duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"mode", "status"},
	)

	// LLMStreamFragments tracks the number of text fragments received.
	LLMStreamFragments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_stream_fragments_total",
			Help: "Total streamed response fragments",
		},
		[]string{"mode"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsActive tracks live authenticated sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live sessions",
		},
	)

	// DocumentsTotal tracks document store mutations.
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_total",
			Help: "Document store operations",
		},
		[]string{"op", "source", "status"},
	)

	// CorpusOperations tracks calls made to the remote corpus backend.
	CorpusOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_operations_total",
			Help: "Remote corpus backend operations",
		},
		[]string{"op", "status"},
	)

	// ReconcileDeletedFiles tracks orphan remote files removed by reconcile.
	ReconcileDeletedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "corpus_reconcile_deleted_files_total",
			Help: "Orphan vector store files deleted by reconcile",
		},
	)

	// MessagesTotal tracks total transcript entries appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for a streamed assistant response.
func RecordLLMStream(mode, status string, duration float64, fragments int) {
	LLMStreamDuration.WithLabelValues(mode, status).Observe(duration)
	LLMStreamFragments.WithLabelValues(mode).Add(float64(fragments))
}

// RecordCorpusOp records a remote corpus backend call.
func RecordCorpusOp(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CorpusOperations.WithLabelValues(op, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
