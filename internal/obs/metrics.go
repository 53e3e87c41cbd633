package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatStreams counts chat streams by mode and how they ended.
	// Labels: mode (plain, search, document), outcome (completed, aborted, unconfigured)
	ChatStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secretaria",
		Subsystem: "chat",
		Name:      "streams_total",
		Help:      "Chat completion streams by mode and outcome",
	}, []string{"mode", "outcome"})

	// ChatStreamDuration measures the time from first pull to the terminal marker.
	// Labels: mode
	ChatStreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "secretaria",
		Subsystem: "chat",
		Name:      "stream_duration_seconds",
		Help:      "Duration of chat completion streams in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"mode"})

	// UpstreamErrors counts provider failures reported as stream text.
	// Labels: provider, kind (unconfigured, transport, status, stream)
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secretaria",
		Subsystem: "provider",
		Name:      "errors_total",
		Help:      "Upstream provider failures by kind",
	}, []string{"provider", "kind"})

	// PersistenceFailures counts end-of-stream writes that were swallowed.
	// Labels: stage (assistant_message, document, file_record, touch)
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secretaria",
		Subsystem: "chat",
		Name:      "persistence_failures_total",
		Help:      "End-of-stream persistence failures by stage",
	}, []string{"stage"})

	// DocumentsGenerated counts document-mode generations.
	// Labels: outcome (success, error, skipped)
	DocumentsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secretaria",
		Subsystem: "docgen",
		Name:      "documents_total",
		Help:      "Generated documents by outcome",
	}, []string{"outcome"})
)
