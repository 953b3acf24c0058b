package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/minerdash/minerdash/pkg/types"
	"github.com/minerdash/minerdash/server/internal/alerts"
	"github.com/minerdash/minerdash/server/internal/compute"
)

// Repository is the read-only data source the service consumes.
// *store.Repository satisfies it.
type Repository interface {
	LogSamples(ctx context.Context) ([]types.Sample, error)
	LatestTotals(ctx context.Context) ([]types.Sample, error)
	StatusRecords(ctx context.Context) ([]types.StatusRecord, error)
	Capacity(ctx context.Context) (types.MetaRecord, error)
	Robots(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) ([]types.Column, error)
	Ping(ctx context.Context) error
}

// Settings are the tunable parameters of the derived metrics.
type Settings struct {
	StaleWindow time.Duration
	Location    *time.Location
	Thresholds  compute.Thresholds
	Rules       []alerts.Rule
}

// DefaultSettings returns the stock 600s window, local zone and 0.7/0.4
// tiers, with no alert rules.
func DefaultSettings() Settings {
	return Settings{
		StaleWindow: compute.DefaultStaleWindow,
		Location:    time.Local,
		Thresholds:  compute.DefaultThresholds(),
	}
}

// Service computes dashboard views on demand.
//
// All exported methods are safe for concurrent use.
type Service struct {
	repo     Repository
	log      *slog.Logger
	clock    clock.Clock
	settings atomic.Pointer[Settings]
}

// New creates a Service. A nil logger discards output; a nil clock uses
// the wall clock.
func New(repo Repository, logger *slog.Logger, clk clock.Clock, settings Settings) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Service{repo: repo, log: logger, clock: clk}
	s.UpdateSettings(settings)
	return s
}

// UpdateSettings atomically replaces the active settings.
func (s *Service) UpdateSettings(st Settings) {
	s.settings.Store(&st)
}

// Settings returns the active settings.
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

func (s *Service) classifier() compute.Classifier {
	st := s.Settings()
	return compute.Classifier{Window: st.StaleWindow, Clock: s.clock, Location: st.Location}
}

// Timeline returns the 5-minute efficiency timeline per robot. A repository
// failure is logged and yields an empty mapping.
func (s *Service) Timeline(ctx context.Context) map[string]compute.Series {
	samples, err := s.repo.LogSamples(ctx)
	if err != nil {
		s.log.Error("dashboard: timeline unavailable", "err", err)
		return map[string]compute.Series{}
	}
	return compute.Timeline(samples)
}

// Liveness returns the per-robot live bot count.
func (s *Service) Liveness(ctx context.Context) (compute.Liveness, error) {
	records, err := s.repo.StatusRecords(ctx)
	if err != nil {
		return compute.Liveness{}, fmt.Errorf("liveness: %w", err)
	}
	return s.classify(records), nil
}

func (s *Service) classify(records []types.StatusRecord) compute.Liveness {
	l := s.classifier().Classify(records)
	if len(l.Malformed) > 0 {
		s.log.Warn("dashboard: skipped status rows with malformed last_collected_at",
			"robots", l.Malformed)
	}
	return l
}

// LivenessCount returns the fleet-wide number of live bots.
func (s *Service) LivenessCount(ctx context.Context) (int, error) {
	l, err := s.Liveness(ctx)
	if err != nil {
		return 0, err
	}
	return l.Total(), nil
}

// Capacity returns the expected bot count per robot.
func (s *Service) Capacity(ctx context.Context) (types.MetaRecord, error) {
	m, err := s.repo.Capacity(ctx)
	if err != nil {
		return nil, fmt.Errorf("capacity: %w", err)
	}
	return m, nil
}

// Tiers compares live bots with capacity for every live robot.
func (s *Service) Tiers(ctx context.Context) (map[string]compute.Comparison, error) {
	l, err := s.Liveness(ctx)
	if err != nil {
		return nil, err
	}
	capacity, err := s.Capacity(ctx)
	if err != nil {
		return nil, err
	}
	return compute.Compare(l.PerRobot, capacity, s.Settings().Thresholds), nil
}

// Totals returns the mined total per robot.
func (s *Service) Totals(ctx context.Context) (map[string]float64, error) {
	records, err := s.repo.StatusRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	return compute.Totals(records), nil
}

// DeltaIndex returns the percent change between each robot's two latest totals.
func (s *Service) DeltaIndex(ctx context.Context) (map[string]float64, error) {
	samples, err := s.repo.LatestTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("delta index: %w", err)
	}
	return compute.DeltaIndex(samples), nil
}

// LastCollection returns the latest collection time across the fleet, or
// nil when there is none.
func (s *Service) LastCollection(ctx context.Context) (*types.TimeOfDay, error) {
	records, err := s.repo.StatusRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("last collection: %w", err)
	}
	return compute.LastCollection(records), nil
}

// Robots returns the distinct robot ids known to the status table.
func (s *Service) Robots(ctx context.Context) ([]string, error) {
	robots, err := s.repo.Robots(ctx)
	if err != nil {
		return nil, fmt.Errorf("robots: %w", err)
	}
	return robots, nil
}

// PerformancePoint is one raw efficiency observation.
type PerformancePoint struct {
	Robot      string  `json:"robot"`
	Hour       int     `json:"hour"`
	Minute     int     `json:"minute"`
	Efficiency float64 `json:"efficiency"`
}

// Performance returns every sample that carries an efficiency value, in
// time order.
func (s *Service) Performance(ctx context.Context) ([]PerformancePoint, error) {
	samples, err := s.repo.LogSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	out := make([]PerformancePoint, 0, len(samples))
	for _, smp := range samples {
		if smp.Efficiency == nil {
			continue
		}
		out = append(out, PerformancePoint{
			Robot:      smp.Robot,
			Hour:       smp.Hour,
			Minute:     smp.Minute,
			Efficiency: *smp.Efficiency,
		})
	}
	return out, nil
}

// Description is the structure of one table.
type Description struct {
	Table   string         `json:"table"`
	Columns []types.Column `json:"columns"`
}

// String renders the description one column per line.
func (d Description) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %q:\n", d.Table)
	for _, c := range d.Columns {
		nullable := "no"
		if c.Nullable {
			nullable = "yes"
		}
		def := "none"
		if c.Default != nil {
			def = *c.Default
		}
		fmt.Fprintf(&b, "  %-24s %-20s nullable=%-3s default=%s\n", c.Name, c.Type, nullable, def)
	}
	return b.String()
}

// DescribeTable returns the column layout of table.
func (s *Service) DescribeTable(ctx context.Context, table string) (Description, error) {
	cols, err := s.repo.DescribeTable(ctx, table)
	if err != nil {
		return Description{}, fmt.Errorf("describe %s: %w", table, err)
	}
	return Description{Table: table, Columns: cols}, nil
}

// Health checks that the repository is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
