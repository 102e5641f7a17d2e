package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/robfig/cron/v3"
)

// PurgeSchedule is how often expired backtest results are dropped from the cache.
const PurgeSchedule = "@every 10m"

// refreshTimeout bounds one scheduled refresh run.
const refreshTimeout = 15 * time.Minute

// Refresher pulls new market data.
type Refresher interface {
	Refresh(ctx context.Context, req request.RefreshRequest) (model.RefreshResponse, error)
}

// Purger drops expired cached results and returns how many were removed.
type Purger interface {
	PurgeExpired() int
}

// Scheduler runs the periodic market data refresh and result cache purge.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	purger    Purger
}

// New registers the jobs enabled by cfg. The refresh job is only added when
// cfg.Enabled is set; the purge job whenever purger is non-nil.
//
// Returns an error if cfg.Schedule is not a valid five-field cron expression.
func New(cfg config.RefreshConfig, refresher Refresher, purger Purger) (*Scheduler, error) {
	logger := cron.PrintfLogger(log.Default())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		refresher: refresher,
		purger:    purger,
	}

	if cfg.Enabled && refresher != nil {
		if _, err := s.cron.AddFunc(cfg.Schedule, s.runRefresh); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Schedule, err)
		}
	}
	if purger != nil {
		if _, err := s.cron.AddFunc(PurgeSchedule, s.runPurge); err != nil {
			return nil, fmt.Errorf("invalid purge schedule: %w", err)
		}
	}

	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	log.Printf("Scheduler started with %d jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("Scheduler stop timed out: %v", ctx.Err())
	}
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.refresher.Refresh(ctx, request.RefreshRequest{})
	if err != nil {
		log.Printf("Scheduled refresh failed: %v", err)
		return
	}
	log.Printf("Scheduled refresh added %d points (%d errors) in %s",
		resp.TotalUpdated, resp.TotalErrors, time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) runPurge() {
	if n := s.purger.PurgeExpired(); n > 0 {
		log.Printf("Purged %d expired backtest results", n)
	}
}
