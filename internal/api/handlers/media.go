package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mediadex/internal/media"
	"mediadex/internal/metrics"
)

// rangePattern matches bytes=<start>-<end> with either side optional.
var rangePattern = regexp.MustCompile(`^bytes=(\d*)-(\d*)`)

// streamChunkSize bounds how much of a file is held in memory per write.
const streamChunkSize = 64 * 1024

// MediaHandler serves GET /media — a byte stream of a file on disk, honoring
// Range requests, with on-the-fly HEIC to JPEG conversion. The filesystem is
// the source of truth here; the index is never consulted.
type MediaHandler struct {
	Roots []string
}

func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.reject(w, http.StatusNotFound, "PATH_REQUIRED", "path query parameter is required")
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.reject(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	if !h.pathAllowed(path) {
		h.reject(w, http.StatusForbidden, "FORBIDDEN", "path is outside the configured roots")
		return
	}

	// HEIC is not browser-renderable; convert in memory and serve as JPEG.
	// On conversion failure fall through and serve the raw bytes.
	if media.IsHEIC(path) {
		buf, err := media.ConvertHEIC(r.Context(), path)
		if err == nil {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
			w.Header().Set("Cache-Control", "public, max-age=86400")
			h.count(http.StatusOK)
			w.Write(buf)
			return
		}
		slog.Warn("media: heic conversion failed, serving raw", "path", path, "error", err)
	}

	mime := media.ContentType(path)
	size := info.Size()

	// Explicit override for clients that cannot resume: full body, range
	// support disavowed, any Range header ignored.
	if noRange := r.URL.Query().Get("no_range"); noRange == "1" || noRange == "true" || noRange == "True" {
		w.Header().Set("Accept-Ranges", "none")
		h.serveFull(w, path, size, mime)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.serveFull(w, path, size, mime)
		return
	}

	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		h.count(http.StatusRequestedRangeNotSatisfiable)
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+
		strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(size, 10))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusPartialContent)
	h.count(http.StatusPartialContent)
	h.copyWindow(w, path, start, length)
}

// parseRange parses a bytes=<start>-<end> header against a file of the given
// size. A missing start denotes a suffix request (last N bytes); a missing
// end means "to end of file". The end is clamped to size-1. ok is false for
// malformed syntax or a start at or beyond the file size.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false
	}
	gstart, gend := m[1], m[2]

	var err error
	if gstart == "" {
		// suffix range: last N bytes
		var suffix int64
		if suffix, err = strconv.ParseInt(gend, 10, 64); err != nil {
			return 0, 0, false
		}
		start = size - suffix
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		if start, err = strconv.ParseInt(gstart, 10, 64); err != nil {
			return 0, 0, false
		}
		if gend == "" {
			end = size - 1
		} else if end, err = strconv.ParseInt(gend, 10, 64); err != nil {
			return 0, 0, false
		}
	}

	if start >= size {
		return 0, 0, false
	}
	if end > size-1 {
		end = size - 1
	}
	return start, end, true
}

// pathAllowed reports whether path lies within one of the configured roots.
// A path equal to a root itself is allowed.
func (h *MediaHandler) pathAllowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range h.Roots {
		if root == "" {
			continue
		}
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (h *MediaHandler) serveFull(w http.ResponseWriter, path string, size int64, mime string) {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	h.count(http.StatusOK)
	h.copyWindow(w, path, 0, size)
}

// copyWindow streams length bytes of path starting at offset, in fixed-size
// chunks. Headers are already written, so mid-stream failures can only be
// logged.
func (h *MediaHandler) copyWindow(w http.ResponseWriter, path string, offset, length int64) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("media: open", "path", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		slog.Error("media: seek", "path", path, "error", err)
		return
	}
	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(w, io.LimitReader(f, length), buf); err != nil {
		slog.Debug("media: stream interrupted", "path", path, "error", err)
	}
}

func (h *MediaHandler) reject(w http.ResponseWriter, status int, code, msg string) {
	h.count(status)
	writeError(w, status, code, msg)
}

func (h *MediaHandler) count(status int) {
	metrics.MediaRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}
