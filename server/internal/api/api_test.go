package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/minerdash/minerdash/pkg/types"
	"github.com/minerdash/minerdash/server/internal/alerts"
	"github.com/minerdash/minerdash/server/internal/api"
	"github.com/minerdash/minerdash/server/internal/dashboard"
	"github.com/minerdash/minerdash/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fakeRepo struct {
	samples  []types.Sample
	status   []types.StatusRecord
	capacity types.MetaRecord
	err      error
}

func (f *fakeRepo) LogSamples(context.Context) ([]types.Sample, error) { return f.samples, f.err }
func (f *fakeRepo) LatestTotals(context.Context) ([]types.Sample, error) {
	return f.samples, f.err
}
func (f *fakeRepo) StatusRecords(context.Context) ([]types.StatusRecord, error) {
	return f.status, f.err
}
func (f *fakeRepo) Capacity(context.Context) (types.MetaRecord, error) { return f.capacity, f.err }
func (f *fakeRepo) Robots(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"R2", "R1"}, nil
}
func (f *fakeRepo) Ping(context.Context) error { return f.err }

func (f *fakeRepo) DescribeTable(_ context.Context, table string) ([]types.Column, error) {
	if table != "robot_meta" {
		return nil, store.ErrTableNotFound
	}
	return []types.Column{{Name: "robot", Type: "text"}, {Name: "bots", Type: "integer", Nullable: true}}, nil
}

func fp(v float64) *float64 { return &v }

func fleet() *fakeRepo {
	return &fakeRepo{
		samples: []types.Sample{
			{Robot: "R1", Hour: 10, Minute: 2, Efficiency: fp(0.5), Total: fp(100), Seq: 1},
			{Robot: "R1", Hour: 10, Minute: 4, Efficiency: fp(0.6), Total: fp(110), Seq: 2},
		},
		status: []types.StatusRecord{
			{Robot: "R1", Bot: "b1", LastCollectedAt: "10:04:00", Total: fp(110)},
			{Robot: "R2", Bot: "b1", LastCollectedAt: "09:00:00", Total: fp(50)},
		},
		capacity: types.MetaRecord{"R1": 1, "R2": 4},
	}
}

// newHandler builds the wrapped API evaluating at 10:05:00 UTC.
func newHandler(repo *fakeRepo, rules ...alerts.Rule) http.Handler {
	m := clock.NewMock()
	m.Set(time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC))
	st := dashboard.DefaultSettings()
	st.Location = time.UTC
	st.Rules = rules
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := dashboard.New(repo, logger, m, st)
	return api.New(svc, logger, api.Options{RequestTimeout: time.Second})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, code, rr.Body.String())
	}
}

// --- /api/v1/timeline -------------------------------------------------------

func TestTimeline(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/timeline")
	wantStatus(t, rr, http.StatusOK)

	var resp map[string]struct {
		Buckets []string  `json:"buckets"`
		Values  []float64 `json:"values"`
	}
	decode(t, rr, &resp)
	r1, ok := resp["R1"]
	if !ok {
		t.Fatalf("R1 missing: %v", resp)
	}
	if len(r1.Buckets) != 1 || r1.Buckets[0] != "10:00" {
		t.Errorf("buckets: got %v, want [10:00]", r1.Buckets)
	}
	if len(r1.Values) != 1 || r1.Values[0] != 55 {
		t.Errorf("values: got %v, want [55]", r1.Values)
	}
}

func TestTimeline_RepositoryDownReturnsEmptyObject(t *testing.T) {
	rr := get(t, newHandler(&fakeRepo{err: errors.New("db down")}), "/api/v1/timeline")
	wantStatus(t, rr, http.StatusOK)
	if got := rr.Body.String(); got != "{}\n" {
		t.Errorf("body: got %q, want {}", got)
	}
}

// --- liveness ---------------------------------------------------------------

func TestLivenessCount_BareInteger(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/liveness/count")
	wantStatus(t, rr, http.StatusOK)
	if got := rr.Body.String(); got != "1\n" {
		t.Errorf("body: got %q, want 1", got)
	}
}

func TestLiveness_PerRobot(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/liveness")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	decode(t, rr, &resp)
	if resp.Status != "success" {
		t.Errorf("status: got %q", resp.Status)
	}
	if resp.Data["R1"] != 1 || resp.Data["R2"] != 0 {
		t.Errorf("data: got %v, want R1=1 R2=0", resp.Data)
	}
}

func TestLiveness_ErrorEnvelope(t *testing.T) {
	rr := get(t, newHandler(&fakeRepo{err: errors.New("db down")}), "/api/v1/liveness/count")
	wantStatus(t, rr, http.StatusInternalServerError)

	var resp map[string]string
	decode(t, rr, &resp)
	if resp["status"] != "error" {
		t.Errorf("status: got %q, want error", resp["status"])
	}
	if resp["message"] == "" {
		t.Error("message: missing")
	}
}

// --- meta -------------------------------------------------------------------

func TestMeta_Capacity(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/meta")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Data map[string]int `json:"data"`
	}
	decode(t, rr, &resp)
	if resp.Data["R2"] != 4 {
		t.Errorf("R2 capacity: got %d, want 4", resp.Data["R2"])
	}
}

func TestMetaTiers_ColourAndDiagnostics(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/meta/tiers")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Data map[string]api.TierResponse `json:"data"`
	}
	decode(t, rr, &resp)

	r1 := resp.Data["R1"]
	if r1.Tier != "healthy" || r1.Color != "#00FF00" {
		t.Errorf("R1: got tier=%s color=%s, want healthy #00FF00", r1.Tier, r1.Color)
	}
	if len(r1.Diagnostics) != 0 {
		t.Errorf("R1 diagnostics: got %v, want none", r1.Diagnostics)
	}

	r2 := resp.Data["R2"]
	if r2.Tier != "critical" || r2.Color != "#FF0000" {
		t.Errorf("R2: got tier=%s color=%s, want critical #FF0000", r2.Tier, r2.Color)
	}
	if len(r2.Diagnostics) == 0 || r2.Diagnostics[0].Key != "no_live_bots" {
		t.Errorf("R2 diagnostics: got %v, want no_live_bots first", r2.Diagnostics)
	}
}

// --- totals / delta / last collection ---------------------------------------

func TestTotals(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/totals")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string             `json:"status"`
		Total  map[string]float64 `json:"total"`
	}
	decode(t, rr, &resp)
	if resp.Total["R1"] != 110 || resp.Total["R2"] != 50 {
		t.Errorf("total: got %v", resp.Total)
	}
}

func TestDelta(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/delta")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Total map[string]float64 `json:"total"`
	}
	decode(t, rr, &resp)
	got := resp.Total["R1"]
	if got < 9.09 || got > 9.10 {
		t.Errorf("R1 delta: got %v, want ~9.09", got)
	}
}

func TestLastCollection(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/last-collection")
	wantStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["value"] != "10:04:00" {
		t.Errorf("value: got %v, want 10:04:00", resp["value"])
	}
}

func TestLastCollection_NullWhenEmpty(t *testing.T) {
	rr := get(t, newHandler(&fakeRepo{}), "/api/v1/last-collection")
	wantStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if v, ok := resp["value"]; !ok || v != nil {
		t.Errorf("value: got %v (present=%v), want null", v, ok)
	}
}

// --- extras -----------------------------------------------------------------

func TestRobots_Sorted(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/robots")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Data []string `json:"data"`
	}
	decode(t, rr, &resp)
	if len(resp.Data) != 2 || resp.Data[0] != "R1" {
		t.Errorf("robots: got %v, want [R1 R2]", resp.Data)
	}
}

func TestPerformance(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/performance")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Data []dashboard.PerformancePoint `json:"data"`
	}
	decode(t, rr, &resp)
	if len(resp.Data) != 2 || resp.Data[1].Efficiency != 0.6 {
		t.Errorf("performance: got %v", resp.Data)
	}
}

func TestTables(t *testing.T) {
	h := newHandler(fleet())

	rr := get(t, h, "/api/v1/tables/robot_meta")
	wantStatus(t, rr, http.StatusOK)
	var resp struct {
		Data dashboard.Description `json:"data"`
	}
	decode(t, rr, &resp)
	if resp.Data.Table != "robot_meta" || len(resp.Data.Columns) != 2 {
		t.Errorf("description: got %+v", resp.Data)
	}

	wantStatus(t, get(t, h, "/api/v1/tables/nope"), http.StatusNotFound)
	wantStatus(t, get(t, h, "/api/v1/tables/1bad-name"), http.StatusBadRequest)
}

func TestSnapshot(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/snapshot")
	wantStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	for _, key := range []string{"generated_at", "timeline", "live_count", "tiers", "totals", "delta", "last_collection"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("snapshot: missing %q", key)
		}
	}
	if _, ok := resp["errors"]; ok {
		t.Errorf("snapshot: unexpected errors %v", resp["errors"])
	}
}

func TestAlerts(t *testing.T) {
	h := newHandler(fleet(), alerts.Rule{Name: "robot-down", Condition: "live_bots == 0", Severity: "critical"})
	rr := get(t, h, "/api/v1/alerts")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Data []alerts.Alert `json:"data"`
	}
	decode(t, rr, &resp)
	if len(resp.Data) != 1 || resp.Data[0].Robot != "R2" {
		t.Errorf("alerts: got %+v, want robot-down on R2", resp.Data)
	}
}

func TestAlerts_EmptyList(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/api/v1/alerts")
	wantStatus(t, rr, http.StatusOK)
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if list, ok := resp["data"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("data: got %v, want []", resp["data"])
	}
}

func TestHealth(t *testing.T) {
	wantStatus(t, get(t, newHandler(fleet()), "/api/v1/health"), http.StatusOK)
	wantStatus(t, get(t, newHandler(&fakeRepo{err: errors.New("down")}), "/api/v1/health"),
		http.StatusServiceUnavailable)
}

// --- routing and middleware -------------------------------------------------

func TestLegacyAliases(t *testing.T) {
	h := newHandler(fleet())
	for legacy, current := range map[string]string{
		"/get_timeline-data/":    "/api/v1/timeline",
		"/get_bots_funcionando/": "/api/v1/liveness",
		"/get_bots_meta/":        "/api/v1/meta",
		"/get_total_minerado/":   "/api/v1/totals",
		"/get_scroller/":         "/api/v1/delta",
		"/get_ultima_coleta/":    "/api/v1/last-collection",
	} {
		old, cur := get(t, h, legacy), get(t, h, current)
		if old.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", legacy, old.Code)
			continue
		}
		if old.Body.String() != cur.Body.String() {
			t.Errorf("%s: body %q differs from %s body %q", legacy, old.Body.String(), current, cur.Body.String())
		}
	}
}

func TestLegacyLiveness_PerRobotEnvelope(t *testing.T) {
	rr := get(t, newHandler(fleet()), "/get_bots_funcionando/")
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	decode(t, rr, &resp)
	if resp.Status != "success" {
		t.Errorf("status: got %q, want success", resp.Status)
	}
	if len(resp.Data) != 2 || resp.Data["R1"] != 1 || resp.Data["R2"] != 0 {
		t.Errorf("data: got %v, want R1=1 R2=0", resp.Data)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(fleet())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/totals", nil))
	wantStatus(t, rr, http.StatusMethodNotAllowed)

	var resp map[string]string
	decode(t, rr, &resp)
	if resp["status"] != "error" {
		t.Errorf("status: got %q, want error", resp["status"])
	}
}

func TestNotFound(t *testing.T) {
	wantStatus(t, get(t, newHandler(fleet()), "/api/v1/nope"), http.StatusNotFound)
}

func TestRequestID(t *testing.T) {
	h := newHandler(fleet())

	rr := get(t, h, "/api/v1/health")
	if rr.Header().Get(api.RequestIDHeader) == "" {
		t.Error("request id: missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(api.RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(api.RequestIDHeader); got != "abc-123" {
		t.Errorf("request id: got %q, want abc-123", got)
	}
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := api.Wrap(panicky, nil, api.Options{})
	rr := get(t, h, "/")
	wantStatus(t, rr, http.StatusInternalServerError)
}

func TestCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := api.Wrap(inner, nil, api.Options{CORSOrigins: []string{"https://dash.example"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Errorf("allow-origin: got %q", got)
	}
}
