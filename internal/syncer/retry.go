package syncer

import (
	"context"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/resilience"
)

// RetryingFetcher retries transient fetch failures according to cfg.
type RetryingFetcher struct {
	next Fetcher
	cfg  resilience.RetryConfig
}

// NewRetryingFetcher wraps next. With one attempt or fewer next is returned
// as is.
func NewRetryingFetcher(next Fetcher, cfg resilience.RetryConfig) Fetcher {
	if cfg.MaxAttempts <= 1 {
		return next
	}
	return &RetryingFetcher{next: next, cfg: cfg}
}

func (f *RetryingFetcher) Fetch(ctx context.Context, region string) ([]model.RawRecord, error) {
	cfg := f.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("overpass.fetch", region)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawRecord, error) {
		return f.next.Fetch(ctx, region)
	})
}
