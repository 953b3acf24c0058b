package exposition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerdash/minerdash/server/internal/compute"
	"github.com/minerdash/minerdash/server/internal/dashboard"
)

type staticSource dashboard.Snapshot

func (s staticSource) Snapshot(context.Context) dashboard.Snapshot { return dashboard.Snapshot(s) }

func fixture() dashboard.Snapshot {
	return dashboard.Snapshot{
		LiveCount: 3,
		Liveness:  map[string]int{"R2": 1, "R1": 2},
		Tiers: map[string]compute.Comparison{
			"R1": {Live: 2, Capacity: 4, Ratio: 0.5, Tier: compute.TierDegraded},
			"R2": {Live: 1, Capacity: 1, Ratio: 1, Tier: compute.TierHealthy},
		},
		Totals: map[string]float64{"R1": 150, "R2": 50},
		Delta:  map[string]float64{"R1": 9.5},
	}
}

// scrape fetches /metrics and parses the text exposition back.
func scrape(t *testing.T, h http.Handler) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	require.NoError(t, err)
	return mfs
}

func valueFor(mf *dto.MetricFamily, robot string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "robot" && lp.GetValue() == robot {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func TestHandler_TextRoundTrip(t *testing.T) {
	mfs := scrape(t, New(staticSource(fixture()), nil))

	require.Contains(t, mfs, FamilyRobotsLive)
	assert.Equal(t, dto.MetricType_GAUGE, mfs[FamilyRobotsLive].GetType())
	assert.Equal(t, 3.0, mfs[FamilyRobotsLive].GetMetric()[0].GetGauge().GetValue())

	v, ok := valueFor(mfs[FamilyLiveBots], "R1")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = valueFor(mfs[FamilyCapacityRatio], "R1")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, ok = valueFor(mfs[FamilyTotal], "R2")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = valueFor(mfs[FamilyDeltaIndex], "R2")
	assert.False(t, ok, "R2 has no delta index")

	assert.Equal(t, 0.0, mfs[FamilySourceErrors].GetMetric()[0].GetGauge().GetValue())
}

func TestFamilies_SortedByRobot(t *testing.T) {
	for _, mf := range Families(fixture()) {
		if mf.GetName() != FamilyLiveBots {
			continue
		}
		require.Len(t, mf.GetMetric(), 2)
		assert.Equal(t, "R1", mf.GetMetric()[0].GetLabel()[0].GetValue())
		assert.Equal(t, "R2", mf.GetMetric()[1].GetLabel()[0].GetValue())
		return
	}
	t.Fatal("live bots family missing")
}

func TestFamilies_EmptySnapshot(t *testing.T) {
	snap := dashboard.Snapshot{Errors: []string{"status: down", "capacity: down"}}
	mfs := Families(snap)

	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Equal(t, []string{FamilyRobotsLive, FamilySourceErrors}, names)
	assert.Equal(t, 2.0, mfs[1].GetMetric()[0].GetGauge().GetValue())
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	New(staticSource(fixture()), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
