package prices

import (
	"math"
	"testing"
	"time"
)

func validSnapshot() Snapshot {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Symbol:      "BTC",
		Name:        "Bitcoin",
		Price:       45000.50,
		Change24h:   2.5,
		MarketCap:   850000000000,
		LastUpdated: now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestSnapshotFresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	threshold := 300 * time.Second

	tests := []struct {
		name        string
		lastUpdated time.Time
		expected    bool
	}{
		{"just_written", now, true},
		{"under_threshold", now.Add(-4*time.Minute - 59*time.Second), true},
		{"exactly_threshold_is_stale", now.Add(-300 * time.Second), false},
		{"over_threshold", now.Add(-5*time.Minute - time.Second), false},
		{"much_older", now.Add(-24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			s.LastUpdated = tt.lastUpdated
			if got := s.Fresh(now, threshold); got != tt.expected {
				t.Errorf("Fresh() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSnapshotFresh_NilIsStale(t *testing.T) {
	var s *Snapshot
	if s.Fresh(time.Now(), time.Hour) {
		t.Error("nil snapshot must always be stale")
	}
}

func TestSnapshotExpired(t *testing.T) {
	s := validSnapshot()

	if s.Expired(s.ExpiresAt.Add(-time.Second)) {
		t.Error("snapshot should not be expired before ExpiresAt")
	}
	if !s.Expired(s.ExpiresAt.Add(time.Second)) {
		t.Error("snapshot should be expired after ExpiresAt")
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr bool
	}{
		{"valid", func(s *Snapshot) {}, false},
		{"zero_price", func(s *Snapshot) { s.Price = 0 }, true},
		{"negative_price", func(s *Snapshot) { s.Price = -1 }, true},
		{"nan_price", func(s *Snapshot) { s.Price = math.NaN() }, true},
		{"inf_price", func(s *Snapshot) { s.Price = math.Inf(1) }, true},
		{"nan_change", func(s *Snapshot) { s.Change24h = math.NaN() }, true},
		{"negative_change_ok", func(s *Snapshot) { s.Change24h = -12.5 }, false},
		{"negative_market_cap", func(s *Snapshot) { s.MarketCap = -1 }, true},
		{"zero_market_cap_ok", func(s *Snapshot) { s.MarketCap = 0 }, false},
		{"inf_market_cap", func(s *Snapshot) { s.MarketCap = math.Inf(1) }, true},
		{"empty_name", func(s *Snapshot) { s.Name = "" }, true},
		{"empty_symbol", func(s *Snapshot) { s.Symbol = "" }, true},
		{"lowercase_symbol", func(s *Snapshot) { s.Symbol = "btc" }, true},
		{"one_char_symbol", func(s *Snapshot) { s.Symbol = "B" }, true},
		{"eleven_char_symbol", func(s *Snapshot) { s.Symbol = "ABCDEFGHIJK" }, true},
		{"expires_before_updated", func(s *Snapshot) { s.ExpiresAt = s.LastUpdated.Add(-time.Second) }, true},
		{"expires_equals_updated", func(s *Snapshot) { s.ExpiresAt = s.LastUpdated }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(&s)

			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"BTC", "ETH", "MATIC", "AB", "ABCDEFGHIJ", "C98"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Errorf("ValidateSymbol(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "B", "btc", "BTC-USD", "ABCDEFGHIJK", "BT C", "ÐOGE"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); err == nil {
			t.Errorf("ValidateSymbol(%q) = nil, want error", s)
		}
	}
}
