package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/minerdash/minerdash/server/internal/alerts"
	"github.com/minerdash/minerdash/server/internal/store"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultRequestTimeout = 10 * time.Second
	DefaultDriver         = "pgx"
	DefaultDSNEnv         = "MINERDASH_DB_URL"
	DefaultStaleWindow    = 10 * time.Minute
	DefaultHealthyRatio   = 0.7
	DefaultDegradedRatio  = 0.4
	DefaultLogLevel       = "info"
)

// Config holds the server configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, stream and /metrics listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// RequestTimeout bounds the total time spent serving one request,
	// including every repository query it issues.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Log controls the structured logger.
	Log LogConfig `yaml:"log"`

	// Database configures the Sample Repository connection.
	Database DatabaseConfig `yaml:"database"`

	// Liveness controls the staleness window used to decide whether a bot is live.
	Liveness LivenessConfig `yaml:"liveness"`

	// Tiers holds the live/capacity ratio thresholds.
	Tiers TiersConfig `yaml:"tiers"`

	// Alerts holds threshold rules evaluated on GET /api/v1/alerts.
	Alerts AlertsConfig `yaml:"alerts"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel returns the slog.Level for Level. Unknown values map to info;
// validate rejects them before this is called.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

// DatabaseConfig configures the SQL connection and the tables read.
type DatabaseConfig struct {
	// Driver is the database/sql driver name (default "pgx").
	Driver string `yaml:"driver"`

	// DSNEnv is the name of the environment variable that holds the DSN.
	DSNEnv string `yaml:"dsn_env"`

	// QueryTimeout bounds a single repository query (default 5s).
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// MaxRows caps how many sample-log rows one query may return (default 20000).
	MaxRows int `yaml:"max_rows"`

	// Tables names the sample log, status and meta tables.
	Tables TablesConfig `yaml:"tables"`
}

// DSN returns the connection string resolved from the environment.
func (d DatabaseConfig) DSN() string {
	if d.DSNEnv == "" {
		return ""
	}
	return os.Getenv(d.DSNEnv)
}

// TablesConfig names the three tables the repository reads.
type TablesConfig struct {
	Log    string `yaml:"log"`
	Status string `yaml:"status"`
	Meta   string `yaml:"meta"`
}

// StoreOptions converts the database section into repository options.
func (d DatabaseConfig) StoreOptions() store.Options {
	return store.Options{
		Tables: store.Tables{
			Log:    d.Tables.Log,
			Status: d.Tables.Status,
			Meta:   d.Tables.Meta,
		},
		QueryTimeout: d.QueryTimeout,
		MaxRows:      d.MaxRows,
	}
}

// LivenessConfig controls bot liveness classification.
type LivenessConfig struct {
	// StaleWindow is the inclusive upper bound on time since last collection
	// for a bot to count as live (default 10m).
	StaleWindow time.Duration `yaml:"stale_window"`

	// Timezone is the IANA zone the collectors record times of day in.
	// "Local" (the default) uses the server's zone.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone. validate guarantees it loads.
func (l LivenessConfig) Location() *time.Location {
	if l.Timezone == "" || l.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TiersConfig holds the inclusive lower bounds of the healthy and degraded tiers.
type TiersConfig struct {
	Healthy  float64 `yaml:"healthy"`
	Degraded float64 `yaml:"degraded"`
}

// AlertsConfig holds the alert rules. Rules are hot-reloadable.
type AlertsConfig struct {
	Rules []alerts.Rule `yaml:"rules"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			RequestTimeout: DefaultRequestTimeout,
			Log:            LogConfig{Level: DefaultLogLevel},
			Database: DatabaseConfig{
				Driver:       DefaultDriver,
				DSNEnv:       DefaultDSNEnv,
				QueryTimeout: store.DefaultQueryTimeout,
				MaxRows:      store.DefaultMaxRows,
				Tables: TablesConfig{
					Log:    store.DefaultLogTable,
					Status: store.DefaultStatusTable,
					Meta:   store.DefaultMetaTable,
				},
			},
			Liveness: LivenessConfig{
				StaleWindow: DefaultStaleWindow,
				Timezone:    "Local",
			},
			Tiers: TiersConfig{
				Healthy:  DefaultHealthyRatio,
				Degraded: DefaultDegradedRatio,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration and
// reports every violation at once.
func validate(cfg *Config) error {
	var errs *multierror.Error
	s := cfg.Server

	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort))
	}
	if s.RequestTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("server.request_timeout must be positive"))
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", s.Log.Level))
	}
	if s.Database.Driver == "" {
		errs = multierror.Append(errs, fmt.Errorf("server.database.driver must not be empty"))
	}
	if s.Database.QueryTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("server.database.query_timeout must be positive"))
	}
	if s.Database.MaxRows <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("server.database.max_rows must be positive"))
	}
	for field, name := range map[string]string{
		"log":    s.Database.Tables.Log,
		"status": s.Database.Tables.Status,
		"meta":   s.Database.Tables.Meta,
	} {
		if !store.ValidTable(name) {
			errs = multierror.Append(errs, fmt.Errorf("server.database.tables.%s %q is not a valid table name", field, name))
		}
	}
	if s.Liveness.StaleWindow <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("server.liveness.stale_window must be positive"))
	}
	if tz := s.Liveness.Timezone; tz != "" && tz != "Local" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("server.liveness.timezone %q: %w", tz, err))
		}
	}
	if s.Tiers.Degraded < 0 || s.Tiers.Healthy <= s.Tiers.Degraded {
		errs = multierror.Append(errs, fmt.Errorf("server.tiers: want 0 <= degraded (%.2f) < healthy (%.2f)", s.Tiers.Degraded, s.Tiers.Healthy))
	}
	for i, r := range s.Alerts.Rules {
		if err := r.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("server.alerts.rules[%d]: %w", i, err))
		}
	}

	return errs.ErrorOrNil()
}
