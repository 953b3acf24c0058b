package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minerdash/minerdash/server/internal/api"
	"github.com/minerdash/minerdash/server/internal/compute"
	"github.com/minerdash/minerdash/server/internal/config"
	"github.com/minerdash/minerdash/server/internal/dashboard"
	"github.com/minerdash/minerdash/server/internal/exposition"
	"github.com/minerdash/minerdash/server/internal/store"
	"github.com/minerdash/minerdash/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("minerdash-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Log.SlogLevel())

	db := cfg.Server.Database
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"driver", db.Driver,
		"tables", []string{db.Tables.Log, db.Tables.Status, db.Tables.Meta},
		"stale_window", cfg.Server.Liveness.StaleWindow,
		"timezone", cfg.Server.Liveness.Timezone,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dsn := db.DSN()
	if dsn == "" {
		slog.Error("database DSN is empty", "env", db.DSNEnv)
		os.Exit(1)
	}
	sqlDB, err := store.Open(ctx, db.Driver, dsn)
	if err != nil {
		slog.Error("failed to open database", "driver", db.Driver, "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	repo, err := store.New(sqlDB, logger.With("component", "store"), db.StoreOptions())
	if err != nil {
		slog.Error("failed to build repository", "err", err)
		os.Exit(1)
	}

	svc := dashboard.New(repo, logger.With("component", "dashboard"), nil, settingsFrom(cfg))

	// Hot reload: thresholds, stale window, timezone, alert rules and log
	// level apply without a restart. The watcher warns about the rest.
	go func() {
		err := config.Watch(ctx, *configPath, cfg, logger.With("component", "config"), func(c *config.Config) {
			svc.UpdateSettings(settingsFrom(c))
			level.Set(c.Server.Log.SlogLevel())
			slog.Info("settings reloaded",
				"stale_window", c.Server.Liveness.StaleWindow,
				"healthy", c.Server.Tiers.Healthy,
				"degraded", c.Server.Tiers.Degraded,
				"log_level", c.Server.Log.Level,
				"alert_rules", len(c.Server.Alerts.Rules),
			)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	hub := ws.New(svc, logger.With("component", "ws"), ws.Options{
		ComputeTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	// One HTTP server: REST API, /metrics and the WebSocket stream.
	router := api.NewRouter(svc, logger.With("component", "api"))
	router.Handle("/metrics", exposition.New(svc, logger.With("component", "exposition")))
	router.Handle("/ws/stream", hub)

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.Wrap(router, logger.With("component", "http"), api.Options{
			RequestTimeout: cfg.Server.RequestTimeout,
			CORSOrigins:    cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("minerdash-server shutting down")
	hub.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// settingsFrom extracts the live-tunable settings from cfg.
func settingsFrom(cfg *config.Config) dashboard.Settings {
	return dashboard.Settings{
		StaleWindow: cfg.Server.Liveness.StaleWindow,
		Location:    cfg.Server.Liveness.Location(),
		Thresholds: compute.Thresholds{
			Healthy:  cfg.Server.Tiers.Healthy,
			Degraded: cfg.Server.Tiers.Degraded,
		},
		Rules: cfg.Server.Alerts.Rules,
	}
}
