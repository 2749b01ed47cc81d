package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewSyncMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := NewSyncMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// Should not panic
	metrics.RecordRegion(context.Background(), RegionOutcome{Region: "Alger"})
	metrics.RecordRun(context.Background(), time.Second, 0, time.Now())
}

func TestSyncMetrics_RecordRegion(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.RecordRegion(context.Background(), RegionOutcome{
		Region: "Alger", State: "done", Fetched: 12, Inserted: 4, Updated: 8, Duration: 3 * time.Second,
	})
	metrics.RecordRegion(context.Background(), RegionOutcome{
		Region: "Oran", State: "failed", Duration: time.Second,
	})

	got := collect(t, reader)

	hist, ok := got["pharmadir_sync_region_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)

	regions, ok := got["pharmadir_sync_regions_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, regions.DataPoints, 2)

	records, ok := got["pharmadir_sync_records_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range records.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(24), total)
	assert.Len(t, records.DataPoints, 3, "zero counts are not recorded")
}

func TestSyncMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	finished := time.Unix(1700000000, 0)
	metrics.RecordRun(context.Background(), 90*time.Second, 2, finished)

	got := collect(t, reader)

	hist, ok := got["pharmadir_sync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	success, _ := hist.DataPoints[0].Attributes.Value("success")
	assert.False(t, success.AsBool())

	gauge, ok := got["pharmadir_sync_last_run_timestamp_seconds"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 1700000000, gauge.DataPoints[0].Value, 0.001)
}
