// Package upstream implements the price provider client with bounded
// retries, exponential backoff, and response schema validation.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/crypto-watch/price-api/pkg/logging"
	"github.com/crypto-watch/price-api/pkg/prices"
)

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL is the provider API root, e.g. https://api.coingecko.com/api/v3.
	BaseURL string

	// APIKey is the provider key. Optional on the free tier.
	APIKey string

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// Retry controls the retry loop.
	Retry RetryConfig

	// RateLimitPerMinute throttles outbound calls so the backend stays
	// inside the provider's own request budget.
	RateLimitPerMinute int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:            baseURL,
		Timeout:            5 * time.Second,
		Retry:              DefaultRetryConfig(),
		RateLimitPerMinute: 30,
	}
}

// Client fetches current price data from the external provider.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates an upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be > 0 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
		config:  cfg,
		logger:  logging.NewLogger("upstream"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// providerEntry is one coin object in the provider's /simple/price
// response. Pointers distinguish missing fields from zero values so
// validation can reject rather than coerce.
type providerEntry struct {
	USD          *float64 `json:"usd"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// Fetch retrieves current price data for symbols in one batched round
// trip. Entries failing schema validation are dropped; the fetch as a
// whole fails only when no requested symbol survives.
//
// Transient failures (network, 5xx, 429, malformed body) are retried up
// to the configured attempt budget with exponential backoff and jitter;
// permanent failures surface immediately. Callers see either success or
// a terminal error, never a retryable one.
func (c *Client) Fetch(ctx context.Context, symbols []string) ([]*prices.Snapshot, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	requestURL, err := c.buildURL(symbols)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	var snapshots []*prices.Snapshot

	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		attemptSnapshots, err := c.attempt(ctx, requestURL, symbols)
		if err != nil {
			return err
		}
		snapshots = attemptSnapshots
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return snapshots, nil
}

// attempt performs one fetch round trip.
func (c *Client) attempt(ctx context.Context, requestURL string, symbols []string) ([]*prices.Snapshot, error) {
	// Outbound throttle: the provider budget is shared by the serving
	// path and the background refresher.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Class: ErrorClassNetwork, Message: "rate limiter wait", Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &FetchError{Class: ErrorClassClient, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-CG-API-KEY", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &FetchError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &FetchError{Class: ErrorClassNetwork, Message: "read body", Err: err}
	}
	if len(body) == 0 {
		errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, &FetchError{Class: ErrorClassMalformed, Message: "empty response body"}
	}

	var payload map[string]providerEntry
	if err := json.Unmarshal(body, &payload); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, &FetchError{Class: ErrorClassMalformed, Message: "unparseable response body", Err: err}
	}

	snapshots := c.transform(payload, symbols)
	if len(snapshots) == 0 {
		// Parsed fine but nothing passed validation: the provider's
		// schema has drifted, retrying will not help.
		errorsTotal.WithLabelValues(string(ErrorClassContract)).Inc()
		return nil, &FetchError{Class: ErrorClassContract, Message: "no valid entries", Err: ErrNoValidEntries}
	}

	return snapshots, nil
}

// buildURL assembles the batched /simple/price query.
func (c *Client) buildURL(symbols []string) (string, error) {
	ids := make([]string, len(symbols))
	for i, symbol := range symbols {
		ids[i] = ProviderID(symbol)
	}

	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	base = base.JoinPath("simple", "price")

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_market_cap", "true")
	query.Set("include_24hr_change", "true")
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// transform converts the provider payload into validated snapshots.
// LastUpdated is the fetch time; the orchestrator stamps the storage
// expiry before writing.
func (c *Client) transform(payload map[string]providerEntry, symbols []string) []*prices.Snapshot {
	now := time.Now().UTC()
	snapshots := make([]*prices.Snapshot, 0, len(symbols))

	for _, symbol := range symbols {
		entry, ok := payload[ProviderID(symbol)]
		if !ok {
			droppedEntriesTotal.Inc()
			c.logger.Warn().Str("symbol", symbol).Msg("Symbol missing from provider response")
			continue
		}
		// Every field is required. A missing field is rejected, never
		// coerced to zero.
		if entry.USD == nil || entry.USDMarketCap == nil || entry.USD24hChange == nil {
			droppedEntriesTotal.Inc()
			c.logger.Warn().Str("symbol", symbol).Msg("Provider entry missing required fields")
			continue
		}

		snapshot := &prices.Snapshot{
			Symbol:      symbol,
			Name:        DisplayName(symbol),
			Price:       *entry.USD,
			Change24h:   *entry.USD24hChange,
			MarketCap:   *entry.USDMarketCap,
			LastUpdated: now,
		}

		if err := snapshot.Validate(); err != nil {
			droppedEntriesTotal.Inc()
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Dropping invalid provider entry")
			continue
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ErrorClassMalformed
	}
}
