package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/overpass"
	"github.com/sells-group/pharmadir/internal/reconcile"
	"github.com/sells-group/pharmadir/internal/region"
	"github.com/sells-group/pharmadir/internal/store"
)

// fakeFetcher returns canned records per region and records call order.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string][]model.RawRecord
	errs    map[string]error
	hook    func(region string)
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, region string) ([]model.RawRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, region)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(region)
	}
	if err := f.errs[region]; err != nil {
		return nil, &overpass.FetchError{Region: region, Err: err}
	}
	return f.records[region], nil
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, region string, records []model.RawRecord) (store.UpsertStats, error) {
	args := m.Called(ctx, region, records)
	return args.Get(0).(store.UpsertStats), args.Error(1)
}

func testCatalog(t *testing.T, names ...string) *region.Catalog {
	t.Helper()
	c, err := region.New(names)
	require.NoError(t, err)
	return c
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
}

func TestRun_RegionIsolation(t *testing.T) {
	recA := []model.RawRecord{{ExternalID: "node/1"}, {ExternalID: "node/2"}}
	recC := []model.RawRecord{{ExternalID: "way/3"}}
	f := &fakeFetcher{
		records: map[string][]model.RawRecord{"A": recA, "C": recC},
		errs:    map[string]error{"B": errors.New("unexpected status 504")},
	}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, "A", recA).Return(store.UpsertStats{Inserted: 2}, nil)
	r.On("Reconcile", mock.Anything, "C", recC).Return(store.UpsertStats{Updated: 1}, nil)

	sl := &sleepRecorder{}
	e := NewEngine(f, r, testCatalog(t, "A", "B", "C"), WithPacing(250*time.Millisecond), WithSleep(sl.sleep))

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Regions, 3)

	assert.Equal(t, StateDone, report.Regions[0].State)
	assert.Equal(t, 2, report.Regions[0].Fetched)
	assert.Equal(t, 2, report.Regions[0].Inserted)

	assert.Equal(t, StateFailed, report.Regions[1].State)
	assert.Contains(t, report.Regions[1].Error, "unexpected status 504")
	assert.Equal(t, 0, report.Regions[1].Fetched)

	assert.Equal(t, StateDone, report.Regions[2].State)
	assert.Equal(t, 1, report.Regions[2].Updated)

	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, []string{"B"}, report.FailedRegions())
	assert.Equal(t, []string{"A", "B", "C"}, f.calls)
	assert.NotEmpty(t, report.ID)

	// Pause after every attempt except the last, failures included.
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, sl.waits)
	r.AssertExpectations(t)
	r.AssertNotCalled(t, "Reconcile", mock.Anything, "B", mock.Anything)
}

func TestRun_ReconcileFailureDoesNotStopRun(t *testing.T) {
	f := &fakeFetcher{records: map[string][]model.RawRecord{
		"A": {{ExternalID: "node/1"}},
		"B": {{ExternalID: "node/2"}},
	}}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, "A", mock.Anything).
		Return(store.UpsertStats{}, &reconcile.StoreError{Region: "A", Err: errors.New("disk I/O error")})
	r.On("Reconcile", mock.Anything, "B", mock.Anything).Return(store.UpsertStats{Inserted: 1}, nil)

	e := NewEngine(f, r, testCatalog(t, "A", "B"), WithSleep(func(time.Duration) {}))

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, report.Regions[0].State)
	assert.Equal(t, 1, report.Regions[0].Fetched)
	assert.Equal(t, "reconcile A: disk I/O error", report.Regions[0].Error)
	assert.Equal(t, StateDone, report.Regions[1].State)
	r.AssertExpectations(t)
}

func TestRun_EmptyRegionSucceeds(t *testing.T) {
	f := &fakeFetcher{}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, "A", mock.Anything).Return(store.UpsertStats{}, nil)

	e := NewEngine(f, r, testCatalog(t, "A"), WithSleep(func(time.Duration) { t.Fatal("no pause after the last region") }))

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.Regions[0].State)
	assert.Equal(t, 0, report.Regions[0].Fetched)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := &fakeFetcher{hook: func(string) {
		once.Do(func() { close(started) })
		<-release
	}}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, "A", mock.Anything).Return(store.UpsertStats{}, nil)

	e := NewEngine(f, r, testCatalog(t, "A"))

	done := make(chan *Report)
	go func() {
		report, err := e.Run(context.Background())
		assert.NoError(t, err)
		done <- report
	}()

	<-started
	assert.True(t, e.Running())

	report, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Nil(t, report)

	close(release)
	first := <-done
	require.NotNil(t, first)
	assert.False(t, e.Running())
	assert.Len(t, f.calls, 1)

	// The guard is released once the run completes.
	_, err = e.Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_CancellationFailsRemainingRegions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{hook: func(region string) {
		if region == "A" {
			cancel()
		}
	}}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, "A", mock.Anything).Return(store.UpsertStats{}, nil)

	sl := &sleepRecorder{}
	e := NewEngine(f, r, testCatalog(t, "A", "B", "C"), WithSleep(sl.sleep))

	report, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.Regions[0].State)
	for _, rr := range report.Regions[1:] {
		assert.Equal(t, StateFailed, rr.State, rr.Region)
		assert.Equal(t, context.Canceled.Error(), rr.Error)
	}
	assert.Equal(t, []string{"A"}, f.calls)
	assert.Empty(t, sl.waits)
	assert.Same(t, report, e.LastReport())
}

func TestLastReport(t *testing.T) {
	f := &fakeFetcher{}
	r := &mockReconciler{}
	r.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).Return(store.UpsertStats{}, nil)

	start := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	clock := []time.Time{start, start.Add(90 * time.Second)}
	e := NewEngine(f, r, testCatalog(t, "A"), WithClock(func() time.Time {
		now := clock[0]
		clock = clock[1:]
		return now
	}))

	assert.Nil(t, e.LastReport())

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, e.LastReport())
	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, 90*time.Second, report.Duration())
}
