package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediadex/internal/db"
	"mediadex/internal/media"
)

// FilesHandler handles index query endpoints and thumbnail serving.
type FilesHandler struct {
	Store    *db.Store
	ThumbDir string
}

// Recent handles GET /api/recent — newest images and videos by best-known
// capture time.
func (h *FilesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 1000)
	files, err := h.Store.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("recent: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if files == nil {
		files = []db.File{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"total": len(files),
	})
}

// Categories handles GET /api/categories — indexed file counts per category.
func (h *FilesHandler) Categories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.CategoryCounts(r.Context())
	if err != nil {
		slog.Error("categories: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": counts})
}

// List handles GET /api/files?category=&sort=&order=&limit= — files in one
// category. Unknown sort keys fall back to capture-time ordering; order=asc
// flips the default descending direction.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "CATEGORY_REQUIRED", "category query parameter is required")
		return
	}
	sort := r.URL.Query().Get("sort")
	if sort == "" {
		sort = "orig_time"
	}
	desc := r.URL.Query().Get("order") != "asc"
	limit := queryInt(r, "limit", 0)

	files, err := h.Store.ByCategory(r.Context(), category, sort, desc, limit)
	if err != nil {
		slog.Error("files list: query", "category", category, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if files == nil {
		files = []db.File{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"files":    files,
		"total":    len(files),
	})
}

// Info handles GET /api/files/info?path= — the indexed record for one path.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "PATH_REQUIRED", "path query parameter is required")
		return
	}
	f, err := h.Store.ByPath(r.Context(), path)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file not indexed")
		return
	}
	if err != nil {
		slog.Error("files info: query", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file":         f,
		"content_type": media.ContentType(f.Path),
	})
}

// Thumbnail handles GET /thumbnails/* — serves a cached thumbnail JPEG.
// The wildcard is resolved under the thumbnail directory only; anything that
// escapes it is treated as missing.
func (h *FilesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	clean := filepath.Clean("/" + rel)
	if strings.Contains(clean, "..") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no thumbnail")
		return
	}
	path := filepath.Join(h.ThumbDir, clean)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no thumbnail")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
