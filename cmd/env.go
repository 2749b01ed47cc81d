package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/pharmadir/internal/overpass"
	"github.com/sells-group/pharmadir/internal/reconcile"
	"github.com/sells-group/pharmadir/internal/region"
	"github.com/sells-group/pharmadir/internal/resilience"
	"github.com/sells-group/pharmadir/internal/store"
	"github.com/sells-group/pharmadir/internal/syncer"
	"github.com/sells-group/pharmadir/internal/telemetry"
)

// initStore opens the configured store and brings its schema up to date.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// catalogFor narrows the default catalog to names, or to the configured
// subset when names is empty.
func catalogFor(names []string) (*region.Catalog, error) {
	if len(names) == 0 {
		names = cfg.Sync.Regions
	}
	return region.Default().Select(names)
}

func newFetcher() syncer.Fetcher {
	client := overpass.NewClient(overpass.Options{
		URL:              cfg.Overpass.URL,
		UserAgent:        cfg.Overpass.UserAgent,
		Timeout:          time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
		QueryTimeoutSecs: cfg.Overpass.QueryTimeoutSecs,
		Limiter:          rate.NewLimiter(rate.Limit(cfg.Overpass.RatePerSec), 1),
	})
	return syncer.NewRetryingFetcher(client, resilience.FetchRetryConfig(cfg.Sync.FetchAttempts))
}

func newEngine(st store.Store, catalog *region.Catalog, metrics *telemetry.SyncMetrics) *syncer.Engine {
	return syncer.NewEngine(
		newFetcher(),
		reconcile.New(st),
		catalog,
		syncer.WithPacing(cfg.Sync.Pacing),
		syncer.WithMetrics(metrics),
	)
}
