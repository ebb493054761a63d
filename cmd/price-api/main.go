// Command price-api runs the crypto price serving backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crypto-watch/price-api/internal/api"
	"github.com/crypto-watch/price-api/pkg/config"
	"github.com/crypto-watch/price-api/pkg/keys"
	"github.com/crypto-watch/price-api/pkg/logging"
	"github.com/crypto-watch/price-api/pkg/prices"
	"github.com/crypto-watch/price-api/pkg/ratelimit"
	"github.com/crypto-watch/price-api/pkg/refresh"
	"github.com/crypto-watch/price-api/pkg/service"
	"github.com/crypto-watch/price-api/pkg/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		logger := logging.NewLogger("main")
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stdout,
	})
	logger := logging.NewLogger("main")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal().Err(err).Str("addr", cfg.RedisURL).Msg("Redis unreachable")
	}
	cancel()
	defer redisClient.Close()

	upstreamClient, err := upstream.New(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Timeout: cfg.UpstreamTimeout,
		Retry: upstream.RetryConfig{
			MaxAttempts:       cfg.UpstreamMaxAttempts,
			InitialBackoff:    cfg.UpstreamBackoffBase,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid upstream configuration")
	}

	svc, err := service.New(
		keys.NewGate(keys.NewRedisStore(redisClient)),
		ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(redisClient), cfg.RateLimitPerMinute),
		prices.NewRedisStore(redisClient),
		upstreamClient,
		service.Config{
			SupportedSymbols:   cfg.SupportedSymbols,
			FreshnessThreshold: cfg.FreshnessThreshold,
			CacheTTL:           cfg.CacheTTL,
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid service configuration")
	}

	var refresher *refresh.Scheduler
	if cfg.RefreshSchedule != "" {
		refresher, err = refresh.New(svc, cfg.RefreshSchedule, cfg.RequestTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid refresh schedule")
		}
		refresher.Start()
	}

	server := api.NewServer(svc, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(server, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Starting price API")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if refresher != nil {
		refresher.Stop()
	}

	logger.Info().Msg("Shutdown complete")
}
