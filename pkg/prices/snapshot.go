// Package prices provides price snapshots, the freshness policy, and the
// persisted snapshot store.
package prices

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is one fully-replacing record of a symbol's price data as of
// LastUpdated. LastUpdated is the origin time of the value, not the time
// of the write; ExpiresAt is the storage-layer expiry, independent of the
// freshness policy.
type Snapshot struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Change24h   float64   `json:"change24h"`
	MarketCap   float64   `json:"marketCap"`
	LastUpdated time.Time `json:"lastUpdated"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Fresh reports whether the snapshot may be served without a refresh.
// A value exactly threshold old is stale; a missing snapshot is always
// stale.
func (s *Snapshot) Fresh(now time.Time, threshold time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.LastUpdated) < threshold
}

// Age returns how old the snapshot's value is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LastUpdated)
}

// Expired reports whether the record has passed its storage expiry.
func (s *Snapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Validate checks the snapshot field-by-field. Payloads are rejected, not
// coerced, on ambiguity.
func (s *Snapshot) Validate() error {
	if err := ValidateSymbol(s.Symbol); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("snapshot %s: name must not be empty", s.Symbol)
	}
	if math.IsNaN(s.Price) || math.IsInf(s.Price, 0) || s.Price <= 0 {
		return fmt.Errorf("snapshot %s: price must be positive and finite, got %v", s.Symbol, s.Price)
	}
	if math.IsNaN(s.Change24h) || math.IsInf(s.Change24h, 0) {
		return fmt.Errorf("snapshot %s: change24h must be finite, got %v", s.Symbol, s.Change24h)
	}
	if math.IsNaN(s.MarketCap) || math.IsInf(s.MarketCap, 0) || s.MarketCap < 0 {
		return fmt.Errorf("snapshot %s: market cap must be non-negative and finite, got %v", s.Symbol, s.MarketCap)
	}
	if !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(s.LastUpdated) {
		return fmt.Errorf("snapshot %s: expiresAt must be after lastUpdated", s.Symbol)
	}
	return nil
}

// ValidateSymbol checks a ticker symbol: 2-10 uppercase letters or digits.
func ValidateSymbol(symbol string) error {
	if len(symbol) < 2 || len(symbol) > 10 {
		return fmt.Errorf("symbol %q: length must be 2-10 characters", symbol)
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("symbol %q: must be uppercase letters and digits", symbol)
		}
	}
	return nil
}
