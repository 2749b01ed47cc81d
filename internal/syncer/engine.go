package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/region"
	"github.com/sells-group/pharmadir/internal/store"
	"github.com/sells-group/pharmadir/internal/telemetry"
)

// DefaultPacing is the pause between two region attempts.
const DefaultPacing = time.Second

// ErrSyncInProgress is returned by Run while another run is active.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// Fetcher retrieves the raw records for one region.
type Fetcher interface {
	Fetch(ctx context.Context, region string) ([]model.RawRecord, error)
}

// Reconciler writes one region's records to the store.
type Reconciler interface {
	Reconcile(ctx context.Context, region string, records []model.RawRecord) (store.UpsertStats, error)
}

// Engine drives sync runs over a region catalog.
type Engine struct {
	fetcher    Fetcher
	reconciler Reconciler
	catalog    *region.Catalog
	pacing     time.Duration
	sleep      func(time.Duration)
	now        func() time.Time
	metrics    *telemetry.SyncMetrics

	running atomic.Bool

	mu   sync.RWMutex
	last *Report
}

// Option configures an Engine.
type Option func(*Engine)

// WithPacing sets the pause between regions.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) { e.pacing = d }
}

// WithSleep replaces the function used to pause between regions.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithClock overrides the source of run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records region and run outcomes.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine over catalog.
func NewEngine(f Fetcher, r Reconciler, catalog *region.Catalog, opts ...Option) *Engine {
	e := &Engine{
		fetcher:    f,
		reconciler: r,
		catalog:    catalog,
		pacing:     DefaultPacing,
		sleep:      time.Sleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastReport returns the most recently completed run, or nil.
func (e *Engine) LastReport() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run syncs every catalog region in order. Region failures are recorded in
// the report and never returned; the only error is ErrSyncInProgress. When
// ctx is cancelled the regions not yet attempted are marked failed.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.running.Store(false)

	names := e.catalog.Names()
	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: e.now().UTC(),
		Regions:   make([]RegionResult, len(names)),
	}
	for i, name := range names {
		report.Regions[i] = RegionResult{Region: name, State: StatePending}
	}

	log := zap.L().With(zap.String("component", "syncer.engine"), zap.String("run_id", report.ID))
	log.Info("sync started", zap.Int("regions", len(names)))

	for i := range report.Regions {
		res := &report.Regions[i]

		if err := ctx.Err(); err != nil {
			res.State = StateFailed
			res.Error = err.Error()
			continue
		}

		e.syncRegion(ctx, res, log)
		e.metrics.RecordRegion(ctx, telemetry.RegionOutcome{
			Region:   res.Region,
			State:    string(res.State),
			Fetched:  res.Fetched,
			Inserted: res.Inserted,
			Updated:  res.Updated,
			Duration: res.Duration,
		})

		if i < len(report.Regions)-1 && ctx.Err() == nil {
			e.sleep(e.pacing)
		}
	}

	report.FinishedAt = e.now().UTC()
	e.metrics.RecordRun(context.WithoutCancel(ctx), report.Duration(), report.Failed(), report.FinishedAt)

	e.mu.Lock()
	e.last = report
	e.mu.Unlock()

	log.Info("sync complete",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Int("inserted", report.Inserted()),
		zap.Int("updated", report.Updated()),
		zap.Duration("elapsed", report.Duration()),
	)
	return report, nil
}

func (e *Engine) syncRegion(ctx context.Context, res *RegionResult, log *zap.Logger) {
	rLog := log.With(zap.String("region", res.Region))
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	res.State = StateFetching
	records, err := e.fetcher.Fetch(ctx, res.Region)
	if err != nil {
		res.State = StateFailed
		res.Error = err.Error()
		rLog.Warn("region fetch failed", zap.Error(err))
		return
	}
	res.Fetched = len(records)

	res.State = StateReconciling
	stats, err := e.reconciler.Reconcile(ctx, res.Region, records)
	if err != nil {
		res.State = StateFailed
		res.Error = err.Error()
		rLog.Error("region reconcile failed", zap.Error(err), zap.Int("fetched", res.Fetched))
		return
	}

	res.Inserted = stats.Inserted
	res.Updated = stats.Updated
	res.State = StateDone
	rLog.Info("region synced",
		zap.Int("fetched", res.Fetched),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Duration("elapsed", time.Since(start)),
	)
}
