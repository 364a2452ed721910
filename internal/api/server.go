package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediadex/internal/api/handlers"
	"mediadex/internal/config"
	"mediadex/internal/db"
	"mediadex/internal/scan"
	"mediadex/internal/scheduler"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run. sched may be nil
// when no schedule is configured.
func New(
	cfg *config.Config,
	store *db.Store,
	mgr *scan.Manager,
	sched *scheduler.Scheduler,
	version string,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	mediaH := &handlers.MediaHandler{Roots: cfg.MediaRoots}
	scansH := &handlers.ScansHandler{Manager: mgr}
	filesH := &handlers.FilesHandler{Store: store, ThumbDir: cfg.ThumbDir}
	statusH := &handlers.StatusHandler{Store: store, Manager: mgr, Sched: sched, Version: version}

	r.Get("/media", mediaH.ServeHTTP)
	r.Post("/refresh", scansH.Refresh)
	r.Get("/scan/stream", scansH.Stream)
	r.Get("/thumbnails/*", filesH.Thumbnail)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)
		r.Get("/recent", filesH.Recent)
		r.Get("/categories", filesH.Categories)
		r.Get("/files", filesH.List)
		r.Get("/files/info", filesH.Info)
	})

	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		addr: cfg.HTTPAddr,
		srv:  &http.Server{Addr: cfg.HTTPAddr, Handler: r},
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
