// Package reconcile applies a region's fetched records to the local store.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/store"
)

// Writer is the part of the store the reconciler needs.
type Writer interface {
	UpsertBatch(ctx context.Context, batch []model.Pharmacy) (store.UpsertStats, error)
}

// StoreError reports that a region batch could not be written. The batch was
// rolled back as a whole.
type StoreError struct {
	Region string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Region, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Reconciler upserts fetched records keyed by external id.
type Reconciler struct {
	w   Writer
	now func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the timestamp source used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler writing through w.
func New(w Writer, opts ...Option) *Reconciler {
	r := &Reconciler{w: w, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile stamps every record with region and the current time and writes
// the batch in one transaction. Records sharing an external id collapse to
// the last one. Existing rows are fully overwritten; absent ones are never
// removed.
func (r *Reconciler) Reconcile(ctx context.Context, region string, records []model.RawRecord) (store.UpsertStats, error) {
	if len(records) == 0 {
		return store.UpsertStats{}, nil
	}

	at := r.now().UTC()
	batch := make([]model.Pharmacy, len(records))
	for i, rec := range records {
		batch[i] = model.FromRaw(rec, region, at)
	}
	deduped := store.Dedupe(batch)

	stats, err := r.w.UpsertBatch(ctx, deduped)
	if err != nil {
		return store.UpsertStats{}, &StoreError{Region: region, Err: err}
	}

	zap.L().Debug("region reconciled",
		zap.String("component", "reconcile"),
		zap.String("region", region),
		zap.Int("records", len(records)),
		zap.Int("duplicates", len(records)-len(deduped)),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
	)
	return stats, nil
}
