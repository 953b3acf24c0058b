package config

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// RestartRequired returns the dotted names of the settings that differ
// between running and next but are only read at startup: the listener,
// the request timeout, the database connection and the CORS policy.
// A reload that changes them is applied to everything else and the
// returned fields keep their running values until the process restarts.
func RestartRequired(running, next *Config) []string {
	var fields []string
	diff := func(name string, a, b interface{}) {
		if !reflect.DeepEqual(a, b) {
			fields = append(fields, name)
		}
	}

	r, n := running.Server, next.Server
	diff("server.http_port", r.HTTPPort, n.HTTPPort)
	diff("server.request_timeout", r.RequestTimeout, n.RequestTimeout)
	diff("server.database.driver", r.Database.Driver, n.Database.Driver)
	diff("server.database.dsn_env", r.Database.DSNEnv, n.Database.DSNEnv)
	diff("server.database.query_timeout", r.Database.QueryTimeout, n.Database.QueryTimeout)
	diff("server.database.max_rows", r.Database.MaxRows, n.Database.MaxRows)
	diff("server.database.tables", r.Database.Tables, n.Database.Tables)
	diff("server.cors_origins", r.CORSOrigins, n.CORSOrigins)
	return fields
}

// reloader turns file events into onChange calls.
type reloader struct {
	path     string
	running  *Config // startup config; restart-only fields are compared to it
	applied  *Config // last config passed to onChange
	logger   *slog.Logger
	onChange func(*Config)
}

// reload loads path and hands the result to onChange unless it is invalid
// or identical to the config already applied.
func (r *reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Error("config: reload failed, keeping previous config",
			"path", r.path, "err", err)
		return
	}
	if reflect.DeepEqual(cfg, r.applied) {
		r.logger.Debug("config: file changed but settings did not", "path", r.path)
		return
	}

	if fields := RestartRequired(r.running, cfg); len(fields) > 0 {
		r.logger.Warn("config: some changes take effect only after a restart",
			"path", r.path, "fields", fields)
	}
	r.applied = cfg
	r.logger.Info("config: reloaded", "path", r.path)
	r.onChange(cfg)
}

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file content changes. running is the config the process started
// with. It runs until ctx is cancelled.
//
// A reload that fails validation is logged and skipped. A reload that edits
// a startup-only setting (see RestartRequired) logs a warning naming the
// fields and still calls onChange for the rest.
func Watch(ctx context.Context, path string, running *Config, logger *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	r := &reloader{
		path:     path,
		running:  running,
		applied:  running,
		logger:   logger,
		onChange: onChange,
	}
	logger.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves replace the file, so Create counts as a change.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			r.reload()
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", "err", err)
		}
	}
}
