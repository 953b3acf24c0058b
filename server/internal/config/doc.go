// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort: port for the REST API, stream and /metrics (default 8080)
//   - RequestTimeout: deadline for one request (default 10s)
//   - Log.Level: debug | info | warn | error (default info)
//   - Database.Driver: database/sql driver (default "pgx")
//   - Database.DSNEnv: environment variable holding the DSN (default MINERDASH_DB_URL)
//   - Database.QueryTimeout, Database.MaxRows, Database.Tables
//   - Liveness.StaleWindow: bots collected within this window are live (default 10m)
//   - Liveness.Timezone: zone collectors record times in (default Local)
//   - Tiers.Healthy, Tiers.Degraded: ratio thresholds (default 0.7 / 0.4)
//   - Alerts.Rules: threshold rules served on /api/v1/alerts
//
// Load(path) applies defaults before unmarshalling, then validates and
// reports every violation together. Watch(ctx, path, logger, onChange)
// reloads the file on change; tier thresholds, the stale window, the time
// zone, alert rules and the log level are applied live by the server.
package config
