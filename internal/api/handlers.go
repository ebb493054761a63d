// Package api exposes the HTTP surface: the price endpoint, health
// check, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crypto-watch/price-api/pkg/apierr"
	"github.com/crypto-watch/price-api/pkg/logging"
	"github.com/crypto-watch/price-api/pkg/service"
)

// HealthCheck reports backing-store liveness.
type HealthCheck func(ctx context.Context) error

// Server holds the HTTP handlers.
type Server struct {
	service *service.Service
	health  HealthCheck
	logger  zerolog.Logger
}

// NewServer creates the HTTP server handlers.
func NewServer(svc *service.Service, health HealthCheck) *Server {
	return &Server{
		service: svc,
		health:  health,
		logger:  logging.NewLogger("api"),
	}
}

// priceEntry is one symbol in the wire response. Failed symbols carry
// only symbol and error.
type priceEntry struct {
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Change24h   *float64 `json:"change24h,omitempty"`
	MarketCap   *float64 `json:"marketCap,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Stale       bool     `json:"stale,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type priceResponse struct {
	Data      []priceEntry `json:"data"`
	Timestamp string       `json:"timestamp"`
}

// handlePrices serves GET /prices. The API key travels in the
// X-API-Key header; symbols arrive as a comma-separated query
// parameter and default to the full supported set.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	keyID := r.Header.Get("X-API-Key")

	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}

	result, err := s.service.GetPrices(r.Context(), keyID, symbols)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	response := priceResponse{
		Data:      make([]priceEntry, 0, len(result.Prices)),
		Timestamp: result.GeneratedAt.UTC().Format(time.RFC3339),
	}

	for _, price := range result.Prices {
		if price.Err != nil {
			response.Data = append(response.Data, priceEntry{
				Symbol: price.Symbol,
				Error:  "Price data unavailable",
			})
			continue
		}

		snapshot := price.Snapshot
		entry := priceEntry{
			Symbol:      snapshot.Symbol,
			Name:        snapshot.Name,
			Price:       roundTo(snapshot.Price, 2),
			Change24h:   roundTo(snapshot.Change24h, 1),
			MarketCap:   &snapshot.MarketCap,
			LastUpdated: snapshot.LastUpdated.UTC().Format(time.RFC3339),
			Stale:       price.Stale,
		}
		response.Data = append(response.Data, entry)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.health(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Health check failed")
		body["status"] = "unhealthy"
		s.writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError renders an error through the taxonomy mapper. Rate limit
// responses additionally carry the standard Retry-After header.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFrom(r.Context())
	status, body := apierr.Map(err, requestID, time.Now())

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	if status >= 500 {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("Request failed")
	} else {
		s.logger.Warn().Err(err).Str("request_id", requestID).Msg("Request rejected")
	}

	s.writeJSON(w, status, body)
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) *float64 {
	factor := math.Pow(10, float64(places))
	rounded := math.Round(v*factor) / factor
	return &rounded
}
