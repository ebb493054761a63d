package prices

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priceapi_cache_hits_total",
		Help: "Total number of price snapshot cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priceapi_cache_misses_total",
		Help: "Total number of price snapshot cache misses",
	})

	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "priceapi_cache_errors_total",
		Help: "Total number of snapshot store operation errors",
	}, []string{"operation"}) // "get", "mget", "set"
)
