package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/minerdash/minerdash/pkg/types"
)

// Defaults applied by New when Options fields are zero.
const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultMaxRows      = 20000
	DefaultLogTable     = "sample_log"
	DefaultStatusTable  = "robot_status"
	DefaultMetaTable    = "robot_meta"
)

var (
	// ErrInvalidTable is returned for table names that are not plain SQL identifiers.
	ErrInvalidTable = errors.New("invalid table name")

	// ErrTableNotFound is returned by DescribeTable when the table has no columns.
	ErrTableNotFound = errors.New("table not found")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidTable reports whether name can be interpolated into a query as a
// table identifier.
func ValidTable(name string) bool {
	return identRe.MatchString(name)
}

// Tables names the three tables the repository reads.
type Tables struct {
	Log    string // historical samples: robot, hour, minute, efficiency, total
	Status string // current status per bot: robot, bot, last_collected_at, total
	Meta   string // expected bots per robot: robot, bots
}

// Options configures a Repository.
type Options struct {
	Tables       Tables
	QueryTimeout time.Duration
	MaxRows      int
}

// Repository is the read-only Sample Repository. Every method runs exactly
// one query under its own deadline and maps the rows into typed records.
//
// Repository is safe for concurrent use; connection pooling is left to
// database/sql.
type Repository struct {
	db      *sql.DB
	log     *slog.Logger
	tables  Tables
	timeout time.Duration
	maxRows int
}

// Open connects to the database with the given driver and DSN and verifies
// the connection with a short ping.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// New wraps db in a Repository. Zero-valued options fall back to defaults.
func New(db *sql.DB, logger *slog.Logger, opts Options) (*Repository, error) {
	if opts.Tables.Log == "" {
		opts.Tables.Log = DefaultLogTable
	}
	if opts.Tables.Status == "" {
		opts.Tables.Status = DefaultStatusTable
	}
	if opts.Tables.Meta == "" {
		opts.Tables.Meta = DefaultMetaTable
	}
	for _, name := range []string{opts.Tables.Log, opts.Tables.Status, opts.Tables.Meta} {
		if !ValidTable(name) {
			return nil, fmt.Errorf("store: %w: %q", ErrInvalidTable, name)
		}
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		db:      db,
		log:     logger,
		tables:  opts.Tables,
		timeout: opts.QueryTimeout,
		maxRows: opts.MaxRows,
	}, nil
}

// query runs q with args and hands every row to scan. label names the
// query in logs and wrapped errors.
func (r *Repository) query(ctx context.Context, label, q string, scan func(*sql.Rows) error, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		r.log.Error("store: query failed", "query", label, "err", err)
		return fmt.Errorf("store: %s: %w", label, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			r.log.Error("store: scan failed", "query", label, "row", n, "err", err)
			return fmt.Errorf("store: %s: scan row %d: %w", label, n, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		r.log.Error("store: row iteration failed", "query", label, "err", err)
		return fmt.Errorf("store: %s: %w", label, err)
	}

	r.log.Debug("store: query ok", "query", label, "rows", n, "duration", time.Since(start))
	return nil
}

// LogSamples returns the day's sample log in chronological order. When the
// log holds more rows than the configured limit, the newest rows are kept.
func (r *Repository) LogSamples(ctx context.Context) ([]types.Sample, error) {
	q := fmt.Sprintf(`
		SELECT id, UPPER(robot), hour, minute, efficiency, total
		FROM %s
		ORDER BY hour DESC, minute DESC, id DESC
		LIMIT $1`, r.tables.Log)

	var out []types.Sample
	err := r.query(ctx, "log samples", q, func(rows *sql.Rows) error {
		var (
			s          types.Sample
			eff, total sql.NullFloat64
		)
		if err := rows.Scan(&s.Seq, &s.Robot, &s.Hour, &s.Minute, &eff, &total); err != nil {
			return err
		}
		s.Robot = types.NormalizeRobot(s.Robot)
		s.Efficiency = nullFloat(eff)
		s.Total = nullFloat(total)
		out = append(out, s)
		return nil
	}, r.maxRows)
	if err != nil {
		return nil, err
	}
	if len(out) == r.maxRows {
		r.log.Warn("store: sample log truncated at row limit, oldest rows dropped", "limit", r.maxRows)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LatestTotals returns the two most recent log rows of every robot, ranked
// by time of day and then insertion order. The row limit does not apply.
func (r *Repository) LatestTotals(ctx context.Context) ([]types.Sample, error) {
	q := fmt.Sprintf(`
		SELECT id, robot, hour, minute, total
		FROM (
			SELECT id, UPPER(robot) AS robot, hour, minute, total,
				ROW_NUMBER() OVER (
					PARTITION BY UPPER(robot)
					ORDER BY hour DESC, minute DESC, id DESC
				) AS rn
			FROM %s
		) ranked
		WHERE rn <= 2
		ORDER BY robot, rn`, r.tables.Log)

	var out []types.Sample
	err := r.query(ctx, "latest totals", q, func(rows *sql.Rows) error {
		var (
			s     types.Sample
			total sql.NullFloat64
		)
		if err := rows.Scan(&s.Seq, &s.Robot, &s.Hour, &s.Minute, &total); err != nil {
			return err
		}
		s.Robot = types.NormalizeRobot(s.Robot)
		s.Total = nullFloat(total)
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StatusRecords returns the current-status row of every bot.
func (r *Repository) StatusRecords(ctx context.Context) ([]types.StatusRecord, error) {
	q := fmt.Sprintf(`
		SELECT UPPER(robot), COALESCE(bot, ''), COALESCE(last_collected_at, ''), total
		FROM %s`, r.tables.Status)

	var out []types.StatusRecord
	err := r.query(ctx, "status records", q, func(rows *sql.Rows) error {
		var (
			rec   types.StatusRecord
			total sql.NullFloat64
		)
		if err := rows.Scan(&rec.Robot, &rec.Bot, &rec.LastCollectedAt, &total); err != nil {
			return err
		}
		rec.Robot = types.NormalizeRobot(rec.Robot)
		rec.Total = nullFloat(total)
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Capacity returns the expected bot count per robot.
func (r *Repository) Capacity(ctx context.Context) (types.MetaRecord, error) {
	q := fmt.Sprintf(`
		SELECT UPPER(robot), COALESCE(SUM(bots), 0)::int
		FROM %s
		GROUP BY UPPER(robot)`, r.tables.Meta)

	out := make(types.MetaRecord)
	err := r.query(ctx, "capacity", q, func(rows *sql.Rows) error {
		var (
			robot string
			bots  int
		)
		if err := rows.Scan(&robot, &bots); err != nil {
			return err
		}
		out[types.NormalizeRobot(robot)] += bots
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Robots returns the distinct robot ids present in the status table.
func (r *Repository) Robots(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`
		SELECT DISTINCT UPPER(robot)
		FROM %s
		ORDER BY 1`, r.tables.Status)

	out := make([]string, 0)
	err := r.query(ctx, "robots", q, func(rows *sql.Rows) error {
		var robot string
		if err := rows.Scan(&robot); err != nil {
			return err
		}
		out = append(out, types.NormalizeRobot(robot))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeTable returns the column layout of table.
func (r *Repository) DescribeTable(ctx context.Context, table string) ([]types.Column, error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("store: %w: %q", ErrInvalidTable, table)
	}
	const q = `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`

	var out []types.Column
	err := r.query(ctx, "describe "+table, q, func(rows *sql.Rows) error {
		var (
			c        types.Column
			nullable string
			def      sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &def); err != nil {
			return err
		}
		c.Nullable = nullable == "YES"
		if def.Valid {
			c.Default = &def.String
		}
		out = append(out, c)
		return nil
	}, table)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("store: %w: %q", ErrTableNotFound, table)
	}
	return out, nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
