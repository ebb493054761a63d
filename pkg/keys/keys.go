// Package keys provides API key records, their persisted store, and the
// authentication gate used at the front of the serving pipeline.
package keys

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/crypto-watch/price-api/pkg/apierr"
	"github.com/crypto-watch/price-api/pkg/logging"
)

// ErrKeyNotFound indicates the key id has no record in the store.
var ErrKeyNotFound = errors.New("api key not found")

var authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "priceapi_auth_attempts_total",
	Help: "Authentication attempts by result (ok, missing, disabled, error)",
}, []string{"result"})

// APIKey is one provisioned API key record. Records are created by an
// out-of-band provisioning process; the serving path only reads them and,
// best effort, touches LastUsedAt.
type APIKey struct {
	KeyID      string     `json:"keyId"`
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Store is the persisted key collection.
type Store interface {
	// Get returns the record for keyID, or ErrKeyNotFound.
	Get(ctx context.Context, keyID string) (*APIKey, error)

	// Put writes a full record. Used by provisioning and tests only.
	Put(ctx context.Context, key *APIKey) error

	// TouchLastUsed records that keyID was just used. Best effort;
	// callers ignore the error.
	TouchLastUsed(ctx context.Context, keyID string, now time.Time) error
}

// Gate validates inbound API keys against the Store.
type Gate struct {
	store  Store
	logger zerolog.Logger
}

// NewGate creates an authentication gate.
func NewGate(store Store) *Gate {
	return &Gate{
		store:  store,
		logger: logging.NewLogger("auth"),
	}
}

// Authenticate validates keyID and returns its record.
//
// An empty key is a validation failure; an unknown or disabled key is an
// authentication failure. Authentication failures are never retried.
func (g *Gate) Authenticate(ctx context.Context, keyID string) (*APIKey, error) {
	if keyID == "" {
		authAttemptsTotal.WithLabelValues("missing").Inc()
		return nil, apierr.Validation("Missing API key", nil)
	}

	record, err := g.store.Get(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			authAttemptsTotal.WithLabelValues("missing").Inc()
			g.logger.Warn().
				Str("api_key", logging.MaskKey(keyID)).
				Msg("Unknown API key")
			return nil, apierr.Authentication("Invalid API key")
		}
		authAttemptsTotal.WithLabelValues("error").Inc()
		return nil, apierr.Internal(err)
	}

	if !record.Enabled {
		authAttemptsTotal.WithLabelValues("disabled").Inc()
		g.logger.Warn().
			Str("api_key", logging.MaskKey(keyID)).
			Msg("Disabled API key")
		return nil, apierr.Authentication("API key is disabled")
	}

	authAttemptsTotal.WithLabelValues("ok").Inc()

	if err := g.store.TouchLastUsed(ctx, keyID, time.Now()); err != nil {
		g.logger.Debug().Err(err).
			Str("api_key", logging.MaskKey(keyID)).
			Msg("Failed to touch last-used timestamp")
	}

	return record, nil
}
