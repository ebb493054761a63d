package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priceapi_serve_cache_total",
		Help: "Total symbols served from fresh cache",
	})

	upstreamServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priceapi_serve_upstream_total",
		Help: "Total symbols served from a fresh upstream fetch",
	})

	staleServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "priceapi_serve_stale_total",
		Help: "Total symbols served from stale cache after a failed refresh",
	})
)
