package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter.
const SyncMetricsMeterName = "github.com/sells-group/pharmadir/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync runs.
type SyncMetrics struct {
	regionDuration metric.Float64Histogram
	regionRecords  metric.Int64Counter
	regionsTotal   metric.Int64Counter
	runDuration    metric.Float64Histogram
	lastRunTime    metric.Float64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	regionDuration, err := meter.Float64Histogram(
		"pharmadir_sync_region_duration_seconds",
		metric.WithDescription("Duration of a single region fetch and reconcile"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	regionRecords, err := meter.Int64Counter(
		"pharmadir_sync_records_total",
		metric.WithDescription("Records handled by the sync, by kind (fetched, inserted, updated)"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	regionsTotal, err := meter.Int64Counter(
		"pharmadir_sync_regions_total",
		metric.WithDescription("Region sync attempts by terminal state"),
		metric.WithUnit("{region}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"pharmadir_sync_run_duration_seconds",
		metric.WithDescription("Duration of a full sync run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(10, 30, 60, 120, 300, 600, 1200, 1800),
	)
	if err != nil {
		return nil, err
	}

	lastRunTime, err := meter.Float64Gauge(
		"pharmadir_sync_last_run_timestamp_seconds",
		metric.WithDescription("Unix time the last sync run finished"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		regionDuration: regionDuration,
		regionRecords:  regionRecords,
		regionsTotal:   regionsTotal,
		runDuration:    runDuration,
		lastRunTime:    lastRunTime,
	}, nil
}

// RegionOutcome is what one region attempt produced.
type RegionOutcome struct {
	Region   string
	State    string
	Fetched  int
	Inserted int
	Updated  int
	Duration time.Duration
}

// RecordRegion records the outcome of one region attempt.
func (m *SyncMetrics) RecordRegion(ctx context.Context, o RegionOutcome) {
	if m == nil {
		return
	}

	region := attribute.String("region", o.Region)
	state := attribute.String("state", o.State)

	m.regionDuration.Record(ctx, o.Duration.Seconds(), metric.WithAttributes(region, state))
	m.regionsTotal.Add(ctx, 1, metric.WithAttributes(region, state))

	for kind, n := range map[string]int{"fetched": o.Fetched, "inserted": o.Inserted, "updated": o.Updated} {
		if n > 0 {
			m.regionRecords.Add(ctx, int64(n), metric.WithAttributes(region, attribute.String("kind", kind)))
		}
	}
}

// RecordRun records a finished sync run.
func (m *SyncMetrics) RecordRun(ctx context.Context, duration time.Duration, failed int, finishedAt time.Time) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", failed == 0))
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.lastRunTime.Record(ctx, float64(finishedAt.UnixNano())/1e9)
}
