package embeddings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts embedding cache lookups served from cache.
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "queryd",
		Subsystem: "embeddings",
		Name:      "cache_hits_total",
		Help:      "Total embedding cache hits",
	})

	// cacheMisses counts embedding cache lookups that required computation.
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "queryd",
		Subsystem: "embeddings",
		Name:      "cache_misses_total",
		Help:      "Total embedding cache misses",
	})

	// providerBatches counts batch requests sent to the embedding provider.
	providerBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryd",
		Subsystem: "embeddings",
		Name:      "provider_batches_total",
		Help:      "Total embedding batches sent upstream, by result",
	}, []string{"result"})
)
