package upstream

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/crypto-watch/price-api/internal/testutil"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL)
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	cfg.RateLimitPerMinute = 100000 // effectively unthrottled in tests
	return cfg
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(testConfig(baseURL))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Retry: DefaultRetryConfig()}); err == nil {
		t.Error("Expected error for missing base URL")
	}

	cfg := DefaultConfig("https://api.example.com/api/v3")
	cfg.Retry.MaxAttempts = 0
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for zero max attempts")
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.NewPriceResponse(testutil.SimplePriceBody(map[string][3]float64{
		"bitcoin":  {43250.52, 845000000000, 2.34},
		"ethereum": {2280.11, 274000000000, -1.02},
	})))

	client := newTestClient(t, mock.URL())

	snapshots, err := client.Fetch(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snapshots))
	}

	btc := snapshots[0]
	if btc.Symbol != "BTC" {
		t.Errorf("Expected symbol BTC, got %s", btc.Symbol)
	}
	if btc.Name != "Bitcoin" {
		t.Errorf("Expected name Bitcoin, got %s", btc.Name)
	}
	if btc.Price != 43250.52 {
		t.Errorf("Expected price 43250.52, got %f", btc.Price)
	}
	if btc.Change24h != 2.34 {
		t.Errorf("Expected change 2.34, got %f", btc.Change24h)
	}
	if btc.LastUpdated.IsZero() {
		t.Error("Expected LastUpdated to be set")
	}
	if !btc.ExpiresAt.IsZero() {
		t.Error("Expected ExpiresAt to be left for the caller to stamp")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected a single batched request, got %d", mock.GetRequestCount())
	}
}

func TestFetch_BatchedQueryShape(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.NewPriceResponse(testutil.SimplePriceBody(map[string][3]float64{
		"bitcoin":  {43000, 1, 1},
		"ethereum": {2200, 1, 1},
		"solana":   {98, 1, 1},
	})))

	client := newTestClient(t, mock.URL())

	if _, err := client.Fetch(context.Background(), []string{"BTC", "ETH", "SOL"}); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	query := url.Values(mock.LastQuery)
	ids := query.Get("ids")
	for _, id := range []string{"bitcoin", "ethereum", "solana"} {
		if !strings.Contains(ids, id) {
			t.Errorf("Expected ids to contain %s, got %s", id, ids)
		}
	}
	if query.Get("vs_currencies") != "usd" {
		t.Errorf("Expected vs_currencies=usd, got %s", query.Get("vs_currencies"))
	}
	if query.Get("include_market_cap") != "true" {
		t.Error("Expected include_market_cap=true")
	}
	if query.Get("include_24hr_change") != "true" {
		t.Error("Expected include_24hr_change=true")
	}
}

func TestFetch_RetriesOnServerError(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceSequence(
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewPriceResponse(testutil.SimplePriceBody(map[string][3]float64{
			"bitcoin": {43000, 845000000000, 2.3},
		})),
	)

	client := newTestClient(t, mock.URL())

	snapshots, err := client.Fetch(context.Background(), []string{"BTC"})
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snapshots))
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", mock.GetRequestCount())
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.NewServerErrorResponse())

	client := newTestClient(t, mock.URL())

	_, err := client.Fetch(context.Background(), []string{"BTC"})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got: %v", err)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", mock.GetRequestCount())
	}
}

func TestFetch_NoRetryOnClientError(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.MockResponse{
		StatusCode: 404,
		Body:       `{"error": "not found"}`,
	})

	client := newTestClient(t, mock.URL())

	_, err := client.Fetch(context.Background(), []string{"BTC"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FetchError, got: %T", err)
	}
	if fe.Class != ErrorClassClient {
		t.Errorf("Expected client class, got %s", fe.Class)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 attempt (no retries), got %d", mock.GetRequestCount())
	}
}

func TestFetch_RetriesRateLimit(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceSequence(
		testutil.NewRateLimitResponse(),
		testutil.NewPriceResponse(testutil.SimplePriceBody(map[string][3]float64{
			"bitcoin": {43000, 845000000000, 2.3},
		})),
	)

	client := newTestClient(t, mock.URL())

	if _, err := client.Fetch(context.Background(), []string{"BTC"}); err != nil {
		t.Fatalf("Expected success after rate limit retry, got: %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("Expected 2 attempts, got %d", mock.GetRequestCount())
	}
}

func TestFetch_RetriesMalformedBody(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceSequence(
		testutil.NewPriceResponse(`{"bitcoin": [not json`),
		testutil.NewPriceResponse(testutil.SimplePriceBody(map[string][3]float64{
			"bitcoin": {43000, 845000000000, 2.3},
		})),
	)

	client := newTestClient(t, mock.URL())

	if _, err := client.Fetch(context.Background(), []string{"BTC"}); err != nil {
		t.Fatalf("Expected success after malformed body retry, got: %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("Expected 2 attempts, got %d", mock.GetRequestCount())
	}
}

func TestFetch_DropsInvalidEntries(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	// Ethereum is missing its price, solana has a non-positive one,
	// cardano is missing its market cap, and ripple its 24h change.
	// Missing fields are rejected, never coerced to zero.
	mock.SetPriceResponse(testutil.NewPriceResponse(
		`{"bitcoin":{"usd":43000,"usd_market_cap":845000000000,"usd_24h_change":2.3},` +
			`"ethereum":{"usd_market_cap":274000000000},` +
			`"solana":{"usd":-1,"usd_market_cap":1,"usd_24h_change":0},` +
			`"cardano":{"usd":0.45,"usd_24h_change":1.1},` +
			`"ripple":{"usd":0.52,"usd_market_cap":28000000000}}`,
	))

	client := newTestClient(t, mock.URL())

	snapshots, err := client.Fetch(context.Background(), []string{"BTC", "ETH", "SOL", "ADA", "XRP"})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Expected 1 valid snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Symbol != "BTC" {
		t.Errorf("Expected BTC to survive, got %s", snapshots[0].Symbol)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Partial validation failures must not trigger retries, got %d attempts", mock.GetRequestCount())
	}
}

func TestFetch_AllEntriesInvalid(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.NewPriceResponse(`{"bitcoin":{"usd_market_cap":1}}`))

	client := newTestClient(t, mock.URL())

	_, err := client.Fetch(context.Background(), []string{"BTC"})
	if !errors.Is(err, ErrNoValidEntries) {
		t.Errorf("Expected ErrNoValidEntries, got: %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Contract failures must not be retried, got %d attempts", mock.GetRequestCount())
	}
}

func TestFetch_EmptySymbols(t *testing.T) {
	client := newTestClient(t, "https://api.example.com/api/v3")

	snapshots, err := client.Fetch(context.Background(), nil)
	if err != nil {
		t.Errorf("Expected no error for empty symbol list, got: %v", err)
	}
	if snapshots != nil {
		t.Errorf("Expected nil snapshots, got %v", snapshots)
	}
}

func TestFetch_ContextCancellation(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetPriceResponse(testutil.MockResponse{
		StatusCode: 200,
		Body:       `{}`,
		Delay:      time.Second,
	})

	client := newTestClient(t, mock.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Fetch(ctx, []string{"BTC"})
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Cancellation should stop the fetch promptly, took %v", elapsed)
	}
}

func TestProviderID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTC", "bitcoin"},
		{"ETH", "ethereum"},
		{"DOGE", "dogecoin"},
		{"TRX", "tron"},
		{"UNKNOWN", "unknown"},
	}

	for _, tt := range tests {
		if got := ProviderID(tt.symbol); got != tt.want {
			t.Errorf("ProviderID(%s) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("BTC"); got != "Bitcoin" {
		t.Errorf("DisplayName(BTC) = %s, want Bitcoin", got)
	}
	if got := DisplayName("XYZ"); got != "XYZ" {
		t.Errorf("DisplayName(XYZ) = %s, want XYZ", got)
	}
}
