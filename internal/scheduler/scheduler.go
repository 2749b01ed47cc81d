// Package scheduler triggers directory syncs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/syncer"
)

// DefaultInterval is the time between two scheduled syncs.
const DefaultInterval = 24 * time.Hour

// Runner performs one full sync.
type Runner interface {
	Run(ctx context.Context) (*syncer.Report, error)
}

// Config controls the schedule.
type Config struct {
	Interval time.Duration
	// RunOnStart triggers a sync as soon as Start is called.
	RunOnStart bool
}

// Scheduler runs syncs from a single goroutine, so scheduled runs never
// overlap. Ticks that arrive while a run is in progress are dropped.
type Scheduler struct {
	runner Runner
	cfg    Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a Scheduler for runner.
func New(runner Runner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// Start runs the schedule until ctx is cancelled or Stop is called. It
// returns an error if the scheduler was already started.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return eris.New("scheduler: already started")
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	log := zap.L().With(zap.String("component", "scheduler"))
	log.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("run_on_start", s.cfg.RunOnStart),
	)
	defer func() {
		close(s.done)
		log.Info("scheduler stopped")
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.trigger(ctx, ticker, log)
	}

	for {
		select {
		case <-ticker.C:
			s.trigger(ctx, ticker, log)
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop cancels the schedule and waits for an in-flight region to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, started := s.cancel, s.started
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

func (s *Scheduler) trigger(ctx context.Context, ticker *time.Ticker, log *zap.Logger) {
	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		log.Warn("sync already running, skipping scheduled run")
	case err != nil:
		log.Error("scheduled sync failed", zap.Error(err))
	default:
		log.Info("scheduled sync finished",
			zap.String("run_id", report.ID),
			zap.Int("succeeded", report.Succeeded()),
			zap.Int("failed", report.Failed()),
		)
	}

	// Drop a tick that fired while the run was in progress.
	select {
	case <-ticker.C:
		log.Info("skipped tick that fired during sync")
	default:
	}
}
