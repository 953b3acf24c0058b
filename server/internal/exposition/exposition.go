package exposition

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/minerdash/minerdash/server/internal/dashboard"
)

// Metric family names.
const (
	FamilyRobotsLive    = "minerdash_robots_live"
	FamilyLiveBots      = "minerdash_robot_live_bots"
	FamilyCapacityRatio = "minerdash_robot_capacity_ratio"
	FamilyTotal         = "minerdash_robot_total"
	FamilyDeltaIndex    = "minerdash_robot_delta_index"
	FamilySourceErrors  = "minerdash_source_errors"
)

// Source produces the snapshot a scrape is rendered from.
type Source interface {
	Snapshot(ctx context.Context) dashboard.Snapshot
}

// Handler serves GET /metrics.
type Handler struct {
	src Source
	log *slog.Logger
}

// New creates a Handler. A nil logger discards output.
func New(src Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{src: src, log: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	families := Families(h.src.Snapshot(r.Context()))

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			// Headers are already out; all that is left is to stop.
			h.log.Error("exposition: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		if err := c.Close(); err != nil {
			h.log.Error("exposition: close encoder", "err", err)
		}
	}
}

// Families converts a snapshot into gauge families, robots sorted by id.
// Per-robot families with no samples are omitted.
func Families(snap dashboard.Snapshot) []*dto.MetricFamily {
	out := []*dto.MetricFamily{
		gaugeFamily(FamilyRobotsLive, "Bots that reported within the staleness window, fleet-wide.",
			[]*dto.Metric{gauge(float64(snap.LiveCount))}),
		gaugeFamily(FamilySourceErrors, "Snapshot sections that could not be read from the repository.",
			[]*dto.Metric{gauge(float64(len(snap.Errors)))}),
	}

	live := make(map[string]float64, len(snap.Liveness))
	for robot, n := range snap.Liveness {
		live[robot] = float64(n)
	}
	ratio := make(map[string]float64, len(snap.Tiers))
	for robot, c := range snap.Tiers {
		ratio[robot] = c.Ratio
	}

	for _, f := range []struct {
		name, help string
		values     map[string]float64
	}{
		{FamilyLiveBots, "Live bots per robot.", live},
		{FamilyCapacityRatio, "Live bots divided by expected bots per robot.", ratio},
		{FamilyTotal, "Mined total per robot.", snap.Totals},
		{FamilyDeltaIndex, "Percent change between the two most recent totals per robot.", snap.Delta},
	} {
		if len(f.values) == 0 {
			continue
		}
		out = append(out, gaugeFamily(f.name, f.help, perRobot(f.values)))
	}
	return out
}

func perRobot(values map[string]float64) []*dto.Metric {
	robots := make([]string, 0, len(values))
	for r := range values {
		robots = append(robots, r)
	}
	sort.Strings(robots)

	metrics := make([]*dto.Metric, 0, len(robots))
	for _, r := range robots {
		m := gauge(values[r])
		m.Label = []*dto.LabelPair{{Name: proto.String("robot"), Value: proto.String(r)}}
		metrics = append(metrics, m)
	}
	return metrics
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func gaugeFamily(name, help string, metrics []*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}
