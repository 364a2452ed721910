package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mediadex/internal/scan"
)

// streamPollInterval is how often the progress stream samples the tracker.
const streamPollInterval = 500 * time.Millisecond

// ScansHandler handles the scan trigger and the progress push stream.
type ScansHandler struct {
	Manager *scan.Manager
}

// Refresh handles POST /refresh — starts a background scan. A scan already in
// progress is a conflict, never queued.
func (h *ScansHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.Manager.Start(context.Background(), "manual")
	if err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"success": false,
				"message": "Scan already running",
			})
			return
		}
		slog.Error("refresh: start scan", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Scan started",
	})
}

// Stream handles GET /scan/stream — server-sent progress events. The tracker
// is polled every 500ms and an event is emitted only when the snapshot
// changed. After a terminal snapshot the loop ends with one final guaranteed
// emission, so a client never misses the terminal state to a polling race.
func (h *ScansHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
			"response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tracker := h.Manager.Tracker()
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var last scan.State
	sent := false
	for {
		state := tracker.Snapshot()
		if !sent || state != last {
			if err := writeProgressEvent(w, state); err != nil {
				return
			}
			flusher.Flush()
			last = state
			sent = true
		}
		if state.Terminal() {
			break
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}

	// Final emission of whatever the tracker holds now.
	if err := writeProgressEvent(w, tracker.Snapshot()); err != nil {
		return
	}
	flusher.Flush()
}

func writeProgressEvent(w http.ResponseWriter, state scan.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
	return err
}
