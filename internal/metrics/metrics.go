// Package metrics provides Prometheus metrics for the intelligence service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons for the VectorsSkipped counter
const (
	SkipReasonZeroNorm          = "zero_norm"
	SkipReasonDimensionMismatch = "dimension_mismatch"
)

// Metrics holds all Prometheus metrics for the intelligence service
type Metrics struct {
	// Indexing metrics
	PropertiesIndexed   prometheus.Counter
	EmbeddingsGenerated prometheus.Counter
	IndexingErrors      prometheus.Counter
	ReindexDuration     prometheus.Histogram

	// Search metrics
	SearchRequests    prometheus.Counter
	SearchDuration    prometheus.Histogram
	SearchErrors      prometheus.Counter
	SearchResultCount prometheus.Histogram
	VectorsSkipped    *prometheus.CounterVec

	// Command engine metrics
	CommandsExecuted prometheus.Counter
	CommandsRejected *prometheus.CounterVec
	CommandDuration  prometheus.Histogram

	// Orchestrator metrics
	HubDelegations prometheus.Counter
	HubFallbacks   prometheus.Counter

	// Cache metrics
	EmbeddingCacheHits   prometheus.Counter
	EmbeddingCacheMisses prometheus.Counter
}

// New creates all intelligence metrics registered against the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid global collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PropertiesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_properties_indexed_total",
			Help: "Total number of properties indexed",
		}),
		EmbeddingsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_embeddings_generated_total",
			Help: "Total number of embeddings generated by the provider",
		}),
		IndexingErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_indexing_errors_total",
			Help: "Total number of per-property indexing failures",
		}),
		ReindexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelligence_reindex_duration_seconds",
			Help:    "Duration of tenant reindex operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		SearchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_search_requests_total",
			Help: "Total number of semantic search requests",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelligence_search_duration_seconds",
			Help:    "Duration of semantic search requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		SearchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_search_errors_total",
			Help: "Total number of failed semantic search requests",
		}),
		SearchResultCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelligence_search_result_count",
			Help:    "Number of results returned per search",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
		VectorsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligence_vectors_skipped_total",
			Help: "Stored vectors excluded from ranking by reason",
		}, []string{"reason"}),

		CommandsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_commands_executed_total",
			Help: "Total number of natural-language commands executed",
		}),
		CommandsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligence_commands_rejected_total",
			Help: "Total number of commands rejected by reason",
		}, []string{"reason"}),
		CommandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelligence_command_duration_seconds",
			Help:    "Duration of command engine requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		HubDelegations: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_hub_delegations_total",
			Help: "Total number of relax commands answered by the upstream hub",
		}),
		HubFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_hub_fallbacks_total",
			Help: "Total number of relax commands handled locally after a hub failure",
		}),

		EmbeddingCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_embedding_cache_hits_total",
			Help: "Total number of query embedding cache hits",
		}),
		EmbeddingCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "intelligence_embedding_cache_misses_total",
			Help: "Total number of query embedding cache misses",
		}),
	}
}
