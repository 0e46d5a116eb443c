package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildsTotal counts index builds by result. Concurrent requests for one
	// document must show exactly one build here.
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryd",
		Subsystem: "index",
		Name:      "builds_total",
		Help:      "Total vector index builds, by result",
	}, []string{"result"})

	// cacheLookups counts index cache lookups by outcome.
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryd",
		Subsystem: "index",
		Name:      "cache_lookups_total",
		Help:      "Total index cache lookups, by outcome",
	}, []string{"outcome"})
)
