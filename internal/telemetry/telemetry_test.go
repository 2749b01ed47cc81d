package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ServesRecordedMetrics(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, "", "test")
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	metrics, err := NewSyncMetrics(p.MeterProvider())
	require.NoError(t, err)
	metrics.RecordRegion(ctx, RegionOutcome{Region: "Alger", State: "done", Fetched: 3, Inserted: 3, Duration: time.Second})

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pharmadir_sync_regions_total")
	assert.Contains(t, string(body), `region="Alger"`)
}
