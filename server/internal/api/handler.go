package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/minerdash/minerdash/pkg/types"
	"github.com/minerdash/minerdash/server/internal/alerts"
	"github.com/minerdash/minerdash/server/internal/compute"
	"github.com/minerdash/minerdash/server/internal/dashboard"
	"github.com/minerdash/minerdash/server/internal/store"
)

// Service is the set of dashboard views served over HTTP.
// *dashboard.Service satisfies it.
type Service interface {
	Timeline(ctx context.Context) map[string]compute.Series
	Liveness(ctx context.Context) (compute.Liveness, error)
	LivenessCount(ctx context.Context) (int, error)
	Capacity(ctx context.Context) (types.MetaRecord, error)
	Tiers(ctx context.Context) (map[string]compute.Comparison, error)
	Totals(ctx context.Context) (map[string]float64, error)
	DeltaIndex(ctx context.Context) (map[string]float64, error)
	LastCollection(ctx context.Context) (*types.TimeOfDay, error)
	Robots(ctx context.Context) ([]string, error)
	Performance(ctx context.Context) ([]dashboard.PerformancePoint, error)
	DescribeTable(ctx context.Context, table string) (dashboard.Description, error)
	Snapshot(ctx context.Context) dashboard.Snapshot
	Alerts(ctx context.Context) ([]alerts.Alert, error)
	Health(ctx context.Context) error
}

// Handler serves the /api/v1/* endpoints and their legacy aliases.
type Handler struct {
	svc Service
	log *slog.Logger
}

// NewRouter creates a router with every API route registered. Callers may
// mount further handlers (metrics, stream) on the returned router.
func NewRouter(svc Service, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{svc: svc, log: logger}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	routes := []struct {
		path, legacy string
		fn           http.HandlerFunc
	}{
		{"/api/v1/timeline", "/get_timeline-data/", h.timeline},
		{"/api/v1/liveness/count", "", h.livenessCount},
		{"/api/v1/liveness", "/get_bots_funcionando/", h.liveness},
		{"/api/v1/meta", "/get_bots_meta/", h.meta},
		{"/api/v1/meta/tiers", "", h.tiers},
		{"/api/v1/totals", "/get_total_minerado/", h.totals},
		{"/api/v1/delta", "/get_scroller/", h.delta},
		{"/api/v1/last-collection", "/get_ultima_coleta/", h.lastCollection},
		{"/api/v1/robots", "", h.robots},
		{"/api/v1/performance", "", h.performance},
		{"/api/v1/tables/{name}", "", h.table},
		{"/api/v1/snapshot", "", h.snapshot},
		{"/api/v1/alerts", "", h.alerts},
		{"/api/v1/health", "", h.health},
	}
	for _, rt := range routes {
		r.HandleFunc(rt.path, rt.fn).Methods(http.MethodGet)
		if rt.legacy != "" {
			r.HandleFunc(rt.legacy, rt.fn).Methods(http.MethodGet)
		}
	}
	return r
}

// New returns the API router wrapped in the standard middleware chain.
func New(svc Service, logger *slog.Logger, opts Options) http.Handler {
	return Wrap(NewRouter(svc, logger), logger, opts)
}

// --- route handlers ---------------------------------------------------------

// timeline returns GET /api/v1/timeline. It never fails: an unavailable
// repository yields {}.
func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.svc.Timeline(r.Context()))
}

// livenessCount returns GET /api/v1/liveness/count as a bare integer.
func (h *Handler) livenessCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.LivenessCount(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, n)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Liveness(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: l.PerRobot})
}

// meta returns GET /api/v1/meta: the expected bot count per robot.
func (h *Handler) meta(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Capacity(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: m})
}

// tiers returns GET /api/v1/meta/tiers with a display colour per robot.
func (h *Handler) tiers(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.svc.Tiers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make(map[string]TierResponse, len(cmp))
	for robot, c := range cmp {
		out[robot] = TierResponse{
			Live:        c.Live,
			Capacity:    c.Capacity,
			Ratio:       c.Ratio,
			Tier:        c.Tier.String(),
			Color:       tierColor(c.Tier),
			Diagnostics: computeDiagnostics(c),
		}
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: out})
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Totals(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, totalResponse{Status: statusSuccess, Total: t})
}

// delta returns GET /api/v1/delta. The payload key is "total" for
// compatibility with the legacy scroller endpoint.
func (h *Handler) delta(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DeltaIndex(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, totalResponse{Status: statusSuccess, Total: d})
}

func (h *Handler) lastCollection(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.LastCollection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, valueResponse{Status: statusSuccess, Value: t})
}

func (h *Handler) robots(w http.ResponseWriter, r *http.Request) {
	robots, err := h.svc.Robots(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sort.Strings(robots)
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: robots})
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.Performance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: points})
}

// table returns GET /api/v1/tables/{name}: 400 for an illegal identifier,
// 404 for an unknown table.
func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !store.ValidTable(name) {
		jsonResp(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: "invalid table name"})
		return
	}
	d, err := h.svc.DescribeTable(r.Context(), name)
	switch {
	case errors.Is(err, store.ErrTableNotFound):
		jsonResp(w, http.StatusNotFound, errorResponse{Status: statusError, Message: "table not found"})
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: d})
}

// snapshot returns GET /api/v1/snapshot: every view in one document. Views
// whose source failed are empty and listed under "errors"; the status code
// stays 200.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.svc.Snapshot(r.Context()))
}

// alerts returns GET /api/v1/alerts: the configured rules that fire now.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	firing, err := h.svc.Alerts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: firing})
}

// health returns GET /api/v1/health: 503 when the repository is unreachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.log.Warn("api: health check failed", "err", err)
		jsonResp(w, http.StatusServiceUnavailable, errorResponse{Status: statusError, Message: err.Error()})
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "ok"})
}

// --- helpers ----------------------------------------------------------------

// fail logs err and writes the structured 500 payload.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("api: request failed",
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"err", err,
	)
	jsonResp(w, http.StatusInternalServerError, errorResponse{Status: statusError, Message: err.Error()})
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Status: statusError, Message: msg})
}

// tierColor maps a tier to its dashboard display colour.
func tierColor(t compute.Tier) string {
	switch t {
	case compute.TierHealthy:
		return "#00FF00"
	case compute.TierDegraded:
		return "#FFFF00"
	default:
		return "#FF0000"
	}
}
