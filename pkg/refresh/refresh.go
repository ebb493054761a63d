// Package refresh schedules background refreshes of the supported
// symbol set so interactive requests mostly hit fresh cache.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/crypto-watch/price-api/pkg/logging"
)

var (
	refreshRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "priceapi_refresh_runs_total",
		Help: "Background refresh runs by result (ok, error)",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "priceapi_refresh_duration_seconds",
		Help:    "Background refresh duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})
)

// Refresher is the unit of work a scheduled run executes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs the refresher on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	target   Refresher
	schedule string
	timeout  time.Duration
	logger   zerolog.Logger

	// wg tracks the warm-up run, which runs outside cron.
	wg sync.WaitGroup
}

// New creates a scheduler. The schedule uses cron syntax and supports
// descriptors like "@every 5m". A refresh run is bounded by timeout.
func New(target Refresher, schedule string, timeout time.Duration) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0")
	}

	s := &Scheduler{
		cron:     cron.New(),
		target:   target,
		schedule: schedule,
		timeout:  timeout,
		logger:   logging.NewLogger("refresh"),
	}

	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins scheduled execution. The first run fires immediately to
// warm the cache before any scheduled tick.
func (s *Scheduler) Start() {
	s.logger.Info().Str("schedule", s.schedule).Msg("Starting background refresh")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce()
	}()
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs, including the
// warm-up run, to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("Background refresh stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.target.Refresh(ctx)
	refreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		refreshRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("Background refresh failed")
		return
	}
	refreshRunsTotal.WithLabelValues("ok").Inc()
}
