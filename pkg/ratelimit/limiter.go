// Package ratelimit implements fixed-window per-key request limiting
// backed by a persisted counter store.
//
// The window is the request timestamp truncated to the minute (UTC). A
// burst spanning a bucket boundary can admit up to twice the limit
// across two consecutive buckets; that is the accepted fixed-window
// approximation, not a bug.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/crypto-watch/price-api/pkg/logging"
)

var rateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "priceapi_rate_limit_decisions_total",
	Help: "Rate limit decisions by result (allowed, rejected)",
}, []string{"result"})

// CounterRetention is how long counter buckets stay in the store before
// eviction. Correctness never depends on eviction; a bucket is dead as
// soon as its minute has passed.
const CounterRetention = time.Hour

// BucketFormat renders a timestamp as its minute bucket id (YYYYMMDDHHMM).
const BucketFormat = "200601021504"

// CounterStore is the persisted per-key, per-bucket counter collection.
type CounterStore interface {
	// Incr atomically increments the counter for (keyID, bucket) and
	// returns the post-increment count. The increment and the returned
	// read are a single atomic operation; two concurrent callers can
	// never observe the same count.
	Incr(ctx context.Context, keyID, bucket string, retention time.Duration) (int64, error)
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool

	// Count is the post-increment count for the current bucket.
	// Rejected requests still consume a slot.
	Count int64

	// Remaining is the number of requests left in the bucket (0 when
	// rejected).
	Remaining int64

	// RetryAfter is the time until the next bucket opens. Only
	// meaningful when rejected; always <= one minute.
	RetryAfter time.Duration
}

// Limiter enforces a requests-per-minute limit per API key.
type Limiter struct {
	store  CounterStore
	limit  int64
	logger zerolog.Logger
}

// NewLimiter creates a limiter enforcing limitPerMinute per key.
func NewLimiter(store CounterStore, limitPerMinute int) *Limiter {
	if limitPerMinute <= 0 {
		panic(fmt.Sprintf("limit per minute must be > 0, got %d", limitPerMinute))
	}
	return &Limiter{
		store:  store,
		limit:  int64(limitPerMinute),
		logger: logging.NewLogger("ratelimit"),
	}
}

// Bucket returns the minute bucket id for now.
func Bucket(now time.Time) string {
	return now.UTC().Format(BucketFormat)
}

// Check counts the request against the current minute bucket and decides
// whether it is admitted. The post-increment count is compared against
// the limit, so the increment and check are one atomic step.
func (l *Limiter) Check(ctx context.Context, keyID string, now time.Time) (Decision, error) {
	bucket := Bucket(now)

	count, err := l.store.Incr(ctx, keyID, bucket, CounterRetention)
	if err != nil {
		return Decision{}, fmt.Errorf("increment rate counter: %w", err)
	}

	decision := Decision{Count: count}
	if count > l.limit {
		decision.RetryAfter = untilNextMinute(now)
		rateLimitDecisionsTotal.WithLabelValues("rejected").Inc()
		l.logger.Warn().
			Str("api_key", logging.MaskKey(keyID)).
			Str("bucket", bucket).
			Int64("count", count).
			Int64("limit", l.limit).
			Msg("Rate limit exceeded")
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = l.limit - count
	rateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	return decision, nil
}

// untilNextMinute returns the time left in now's minute bucket.
func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}
