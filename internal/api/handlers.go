package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/directory"
	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/syncer"
)

const healthTimeout = 2 * time.Second

type handlers struct {
	dir    Directory
	status SyncStatus
	pinger Pinger
}

// GET /api/pharmacies?wilaya=&q=&limit=
func (h *handlers) searchPharmacies(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, ErrInvalidLimit)
			return
		}
		limit = n
	}

	out, err := h.dir.Search(r.Context(), directory.Query{
		Region: params.Get("wilaya"),
		Name:   params.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		zap.L().Error("api: search pharmacies", zap.Error(err))
		writeError(w, ErrInternal)
		return
	}
	if out == nil {
		out = []model.Pharmacy{}
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/wilayas
func (h *handlers) listRegions(w http.ResponseWriter, r *http.Request) {
	out, err := h.dir.Regions(r.Context())
	if err != nil {
		zap.L().Error("api: list regions", zap.Error(err))
		writeError(w, ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type syncStatusResponse struct {
	*syncer.Report
	Running   bool `json:"running"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Inserted  int  `json:"inserted"`
	Updated   int  `json:"updated"`
}

// GET /api/sync/status
func (h *handlers) syncStatus(w http.ResponseWriter, _ *http.Request) {
	report := h.status.LastReport()
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{
		Report:    report,
		Running:   h.status.Running(),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		Inserted:  report.Inserted(),
		Updated:   report.Updated(),
	})
}

// GET /health
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeError(w, ErrUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
