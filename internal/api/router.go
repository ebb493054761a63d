package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crypto-watch/price-api/pkg/logging"
)

// NewRouter assembles the HTTP routes and middleware stack. A
// requestTimeout of zero disables the per-request deadline.
func NewRouter(server *Server, requestTimeout time.Duration) http.Handler {
	router := chi.NewRouter()

	router.Use(RequestID)
	router.Use(RequestLogger(logging.NewLogger("http")))
	router.Use(server.Recoverer)
	if requestTimeout > 0 {
		router.Use(Timeout(requestTimeout))
	}
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"X-API-Key", "X-Request-ID", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/prices", server.handlePrices)
	router.Get("/health", server.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	return router
}
