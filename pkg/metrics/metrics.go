// Package metrics provides the centralized Prometheus metrics registry
// for the price backend. All metrics are defined in their respective
// packages (keys, ratelimit, prices, upstream, service, refresh) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the backend.
// All metrics are automatically registered via promauto in their
// respective packages and exposed on /metrics.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Authentication Metrics (pkg/keys):
//   - priceapi_auth_attempts_total{result} (Counter): Authentication attempts by result (ok, missing, disabled, error)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - priceapi_rate_limit_decisions_total{result} (Counter): Rate limit decisions (allowed, rejected)
//
// Cache Metrics (pkg/prices):
//   - priceapi_cache_hits_total (Counter): Snapshot cache hits
//   - priceapi_cache_misses_total (Counter): Snapshot cache misses (including expired records)
//   - priceapi_cache_errors_total{operation} (Counter): Cache operation errors (get, mget, set)
//
// Upstream Metrics (pkg/upstream):
//   - priceapi_upstream_requests_total{status} (Counter): Provider requests by HTTP status
//   - priceapi_upstream_request_duration_seconds (Histogram): Provider fetch duration
//   - priceapi_upstream_errors_total{class} (Counter): Errors by class (network, server, rate_limit, malformed, client, contract)
//   - priceapi_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - priceapi_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration before retries
//   - priceapi_upstream_retry_exhausted_total{error_class} (Counter): Fetches that exhausted the attempt budget
//   - priceapi_upstream_dropped_entries_total (Counter): Provider entries dropped by schema validation
//
// Serving Metrics (pkg/service):
//   - priceapi_serve_cache_total (Counter): Symbols served from fresh cache
//   - priceapi_serve_upstream_total (Counter): Symbols served from a fresh fetch
//   - priceapi_serve_stale_total (Counter): Symbols served stale after a failed refresh
//
// Refresh Metrics (pkg/refresh):
//   - priceapi_refresh_runs_total{result} (Counter): Background refresh runs (ok, error)
//   - priceapi_refresh_duration_seconds (Histogram): Background refresh duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(priceapi_cache_hits_total[5m])) /
//   (sum(rate(priceapi_cache_hits_total[5m])) + sum(rate(priceapi_cache_misses_total[5m])))
//
//   # Rejection Rate per Key Budget
//   rate(priceapi_rate_limit_decisions_total{result="rejected"}[5m])
//
//   # Stale Serving (upstream degradation signal)
//   rate(priceapi_serve_stale_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(priceapi_upstream_request_duration_seconds_bucket[5m]))
//
//   # Retry Exhaustion Rate
//   rate(priceapi_upstream_retry_exhausted_total[5m])
