// Package service orchestrates the request flow: validation,
// authentication, rate limiting, cache lookup, upstream fetch, and
// cache write-back.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crypto-watch/price-api/pkg/apierr"
	"github.com/crypto-watch/price-api/pkg/keys"
	"github.com/crypto-watch/price-api/pkg/logging"
	"github.com/crypto-watch/price-api/pkg/prices"
	"github.com/crypto-watch/price-api/pkg/ratelimit"
)

// Fetcher retrieves current snapshots for a batch of symbols from the
// external provider.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) ([]*prices.Snapshot, error)
}

// SymbolPrice is the per-symbol outcome of a price request.
type SymbolPrice struct {
	Symbol string

	// Snapshot is the served data. Nil when Err is set.
	Snapshot *prices.Snapshot

	// Stale marks a snapshot served from cache past its freshness
	// threshold because the upstream fetch failed.
	Stale bool

	// Err is set when no data could be served for the symbol.
	Err error
}

// Result is the outcome of a price request, in request order.
type Result struct {
	Prices      []SymbolPrice
	GeneratedAt time.Time
}

// Config holds the orchestrator configuration.
type Config struct {
	// SupportedSymbols is the closed set of symbols the backend serves.
	SupportedSymbols []string

	// FreshnessThreshold is the maximum snapshot age considered fresh.
	FreshnessThreshold time.Duration

	// CacheTTL is the storage lifetime stamped on fetched snapshots.
	// Must be at least FreshnessThreshold.
	CacheTTL time.Duration
}

// Service coordinates the serving pipeline.
type Service struct {
	gate      *keys.Gate
	limiter   *ratelimit.Limiter
	store     prices.Store
	fetcher   Fetcher
	supported map[string]struct{}
	ordered   []string
	freshness time.Duration
	cacheTTL  time.Duration
	logger    zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Service.
func New(gate *keys.Gate, limiter *ratelimit.Limiter, store prices.Store, fetcher Fetcher, cfg Config) (*Service, error) {
	if gate == nil || limiter == nil || store == nil || fetcher == nil {
		return nil, fmt.Errorf("all collaborators are required")
	}
	if len(cfg.SupportedSymbols) == 0 {
		return nil, fmt.Errorf("supported symbols must not be empty")
	}
	if cfg.FreshnessThreshold <= 0 {
		return nil, fmt.Errorf("freshness threshold must be > 0")
	}
	if cfg.CacheTTL < cfg.FreshnessThreshold {
		return nil, fmt.Errorf("cache ttl %v must be >= freshness threshold %v", cfg.CacheTTL, cfg.FreshnessThreshold)
	}

	supported := make(map[string]struct{}, len(cfg.SupportedSymbols))
	ordered := make([]string, 0, len(cfg.SupportedSymbols))
	for _, symbol := range cfg.SupportedSymbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if _, dup := supported[symbol]; dup || symbol == "" {
			continue
		}
		supported[symbol] = struct{}{}
		ordered = append(ordered, symbol)
	}

	return &Service{
		gate:      gate,
		limiter:   limiter,
		store:     store,
		fetcher:   fetcher,
		supported: supported,
		ordered:   ordered,
		freshness: cfg.FreshnessThreshold,
		cacheTTL:  cfg.CacheTTL,
		logger:    logging.NewLogger("service"),
		now:       time.Now,
	}, nil
}

// SetClock sets the time source (for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SupportedSymbols returns the configured symbol set in order.
func (s *Service) SupportedSymbols() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// GetPrices serves price data for the requested symbols on behalf of
// the given API key. Input validation happens before any store access,
// so malformed requests cost neither a rate-limit slot nor a Redis
// round trip. An empty symbol list means the full supported set.
func (s *Service) GetPrices(ctx context.Context, keyID string, rawSymbols []string) (*Result, error) {
	symbols, err := s.normalizeSymbols(rawSymbols)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.Authenticate(ctx, keyID); err != nil {
		return nil, err
	}

	decision, err := s.limiter.Check(ctx, keyID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("api_key", logging.MaskKey(keyID)).Msg("Rate limit check failed")
		return nil, apierr.Internal(err)
	}
	if !decision.Allowed {
		return nil, apierr.RateLimited(decision.RetryAfter)
	}

	return s.assemble(ctx, symbols)
}

// normalizeSymbols trims, uppercases, and deduplicates the requested
// symbols, rejecting anything outside the supported set. Order of first
// occurrence is preserved. Empty input expands to the full set.
func (s *Service) normalizeSymbols(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return s.SupportedSymbols(), nil
	}

	seen := make(map[string]struct{}, len(raw))
	symbols := make([]string, 0, len(raw))

	for _, entry := range raw {
		symbol := strings.ToUpper(strings.TrimSpace(entry))
		if symbol == "" {
			continue
		}
		if err := prices.ValidateSymbol(symbol); err != nil {
			return nil, apierr.Validation(
				fmt.Sprintf("Invalid symbol: %s", symbol),
				map[string]any{"symbol": symbol},
			)
		}
		if _, ok := s.supported[symbol]; !ok {
			return nil, apierr.Validation(
				fmt.Sprintf("Unsupported symbol: %s", symbol),
				map[string]any{"symbol": symbol, "supported": s.SupportedSymbols()},
			)
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	if len(symbols) == 0 {
		return nil, apierr.Validation("No valid symbols requested", nil)
	}

	return symbols, nil
}

// assemble serves the requested symbols from cache where fresh and from
// one batched upstream fetch for the rest.
func (s *Service) assemble(ctx context.Context, symbols []string) (*Result, error) {
	now := s.now()

	cached, err := s.store.GetMulti(ctx, symbols)
	if err != nil {
		// A broken cache degrades to a full fetch rather than an error.
		s.logger.Error().Err(err).Msg("Cache lookup failed, falling back to upstream")
		cached = map[string]*prices.Snapshot{}
	}

	var toFetch []string
	for _, symbol := range symbols {
		if !cached[symbol].Fresh(now, s.freshness) {
			toFetch = append(toFetch, symbol)
		}
	}

	if len(toFetch) == 0 {
		cacheServes.Add(float64(len(symbols)))
		return s.buildResult(symbols, cached, nil, nil, now), nil
	}

	fetched, fetchErr := s.fetchAndStore(ctx, toFetch)
	if fetchErr != nil {
		s.logger.Warn().Err(fetchErr).Strs("symbols", toFetch).Msg("Upstream fetch failed")

		// A single-symbol request with nothing servable fails
		// atomically. Multi-symbol requests always degrade to
		// per-symbol error markers instead.
		if len(symbols) == 1 && cached[symbols[0]] == nil {
			return nil, apierr.ExternalService("Failed to fetch price data", fetchErr)
		}
	}

	return s.buildResult(symbols, cached, fetched, fetchErr, now), nil
}

// fetchAndStore performs one batched upstream fetch, stamps storage
// expiry, and writes the results back to the cache. A write-back
// failure is logged but does not fail the request; the fetched data is
// still served.
func (s *Service) fetchAndStore(ctx context.Context, symbols []string) (map[string]*prices.Snapshot, error) {
	snapshots, err := s.fetcher.Fetch(ctx, symbols)
	if err != nil {
		return nil, err
	}

	fetched := make(map[string]*prices.Snapshot, len(snapshots))
	for _, snapshot := range snapshots {
		snapshot.ExpiresAt = snapshot.LastUpdated.Add(s.cacheTTL)
		fetched[snapshot.Symbol] = snapshot
	}

	if err := s.store.PutMulti(ctx, snapshots); err != nil {
		s.logger.Error().Err(err).Int("count", len(snapshots)).Msg("Cache write-back failed")
	}

	upstreamServes.Add(float64(len(fetched)))

	return fetched, nil
}

// buildResult assembles the per-symbol outcomes in request order.
// Preference order per symbol: freshly fetched data, fresh cache, stale
// cache (annotated), then an error marker.
func (s *Service) buildResult(symbols []string, cached, fetched map[string]*prices.Snapshot, fetchErr error, now time.Time) *Result {
	result := &Result{
		Prices:      make([]SymbolPrice, 0, len(symbols)),
		GeneratedAt: now,
	}

	for _, symbol := range symbols {
		if snapshot, ok := fetched[symbol]; ok {
			result.Prices = append(result.Prices, SymbolPrice{Symbol: symbol, Snapshot: snapshot})
			continue
		}

		snapshot, ok := cached[symbol]
		if !ok {
			markerErr := fmt.Errorf("price data unavailable for %s", symbol)
			if fetchErr != nil {
				markerErr = fmt.Errorf("price data unavailable for %s: %w", symbol, fetchErr)
			}
			result.Prices = append(result.Prices, SymbolPrice{Symbol: symbol, Err: markerErr})
			continue
		}

		stale := !snapshot.Fresh(now, s.freshness)
		if stale {
			staleServes.Inc()
			s.logger.Warn().
				Str("symbol", symbol).
				Dur("age", snapshot.Age(now)).
				Msg("Serving stale snapshot after failed refresh")
		}
		result.Prices = append(result.Prices, SymbolPrice{Symbol: symbol, Snapshot: snapshot, Stale: stale})
	}

	return result
}

// Refresh fetches the full supported set and writes it to the cache.
// Used by the background refresher so interactive requests mostly hit
// fresh cache.
func (s *Service) Refresh(ctx context.Context) error {
	fetched, err := s.fetchAndStore(ctx, s.ordered)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	s.logger.Info().
		Int("requested", len(s.ordered)).
		Int("stored", len(fetched)).
		Msg("Background refresh complete")

	return nil
}
