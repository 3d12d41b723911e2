package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus指标，进程级注册一次
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"status"}, // ok, no_files, error
	)

	SyncDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_sync_documents_total",
			Help: "Documents seen by the sync pipeline",
		},
		[]string{"result"}, // processed, skipped, failed
	)

	SyncChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_sync_chunks_total",
			Help: "Chunks embedded and upserted into the vector index",
		},
	)

	AskRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_ask_requests_total",
			Help: "Ask requests by outcome",
		},
		[]string{"status"}, // answered, no_match, error
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_external_call_duration_seconds",
			Help:    "Duration of calls to external collaborators",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"}, // embedding, vector_index, document_source, chat
	)
)
