package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mediadex/internal/api"
	"mediadex/internal/config"
	"mediadex/internal/db"
	"mediadex/internal/media"
	"mediadex/internal/scan"
	"mediadex/internal/scheduler"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Re-configure logging with the level from config (default: info).
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("mediadex starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"media_roots", cfg.MediaRoots)

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	store := db.NewStore(database)

	// Mark any scans that were 'running' when last process exited as failed.
	if err := store.MarkStaleScansFailed(context.Background()); err != nil {
		slog.Warn("mark stale scans", "error", err)
	}

	// ── Scan manager ───────────────────────────────────────────────────────
	thumbs := &media.Thumbnailer{Dir: cfg.ThumbDir, Size: cfg.ThumbSize}

	var prober scan.Prober
	if cfg.VideoProbe {
		prober = media.NewProber()
	}

	scanner := scan.New(store, cfg.MediaRoots, thumbs, prober, scan.Config{
		Workers:   cfg.ScanWorkers,
		BatchSize: cfg.BatchSize,
	})
	mgr := scan.NewManager(store, scanner)

	// ── Scheduler ──────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Schedule != "" {
		sched = scheduler.New()
		if err := sched.SetJob(cfg.Schedule, func() {
			slog.Info("scheduled scan triggered")
			if err := mgr.Start(context.Background(), "schedule"); err != nil {
				slog.Warn("scheduled scan start", "error", err)
			}
		}); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// ── HTTP server ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(cfg, store, mgr, sched, version)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("mediadex stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
