package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"mediadex/internal/db"
	"mediadex/internal/scan"
	"mediadex/internal/scheduler"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Store   *db.Store
	Manager *scan.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version           string         `json:"version"`
	Scan              scan.State     `json:"scan"`
	Schedule          *scheduleInfo  `json:"schedule"`
	LastCompletedScan *db.ScanRecord `json:"last_completed_scan"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the live scan state, the schedule, and the last completed
// scan as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version: h.Version,
		Scan:    h.Manager.Tracker().Snapshot(),
	}

	if h.Sched != nil {
		resp.Schedule = &scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			NextRunAt: h.Sched.NextRunAt(),
		}
	}

	last, err := h.Store.LastCompletedScan(r.Context())
	if err != nil {
		slog.Error("status: query last scan", "error", err)
	} else {
		resp.LastCompletedScan = last
	}

	writeJSON(w, http.StatusOK, resp)
}
