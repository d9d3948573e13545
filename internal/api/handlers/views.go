package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
	"github.com/RuizOsvaldo/economic-dashboard/internal/views"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// ViewService computes the read models
type ViewService interface {
	Snapshot(ctx context.Context) ([]views.SnapshotRow, error)
	Wide(ctx context.Context, names []string, opts views.WideOptions) (views.WideTable, error)
	Dashboard(ctx context.Context, since time.Time) (views.WideTable, error)
	SeriesMetrics(ctx context.Context, seriesID string, from, to time.Time) ([]contracts.CalculatedMetric, error)
	Correlation(ctx context.Context, a, b string, field contracts.MetricField, monthly bool) (views.Correlation, error)
	CyclePhase(ctx context.Context) (views.PhaseReport, error)
	YieldCurve(ctx context.Context) (views.YieldCurveReport, error)
}

// ViewsHandler serves the dashboard read endpoints
// ⭐ SSOT: read-only API handlers live here
type ViewsHandler struct {
	views    ViewService
	registry *registry.Registry
	since    time.Time
	logger   *logger.Logger
}

// NewViewsHandler creates a views handler. since is the default dashboard lower bound.
func NewViewsHandler(svc ViewService, reg *registry.Registry, since time.Time, log *logger.Logger) *ViewsHandler {
	return &ViewsHandler{views: svc, registry: reg, since: since, logger: log}
}

// RegistryResponse lists the tracked series and wide-table columns
type RegistryResponse struct {
	Series  []contracts.SeriesDescriptor `json:"series"`
	Columns registry.ColumnMap           `json:"columns"`
	Roles   registry.Roles               `json:"roles"`
	Hash    string                       `json:"hash"`
}

// GetRegistry returns the tracked series
// GET /api/registry
func (h *ViewsHandler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RegistryResponse{
		Series:  h.registry.Descriptors(),
		Columns: h.registry.Columns(),
		Roles:   h.registry.Roles(),
		Hash:    h.registry.Hash(),
	})
}

// GetSnapshot returns the latest reading of every indicator
// GET /api/snapshot
func (h *ViewsHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	rows, err := h.views.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to build snapshot")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetWide returns the pivoted table
// GET /api/series/wide?columns=a,b&since=YYYY-MM-DD&monthly=true&fill=true&require=true
func (h *ViewsHandler) GetWide(w http.ResponseWriter, r *http.Request) {
	var (
		opts views.WideOptions
		err  error
	)
	if opts.Since, err = queryDate(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for key, dst := range map[string]*bool{"monthly": &opts.Monthly, "fill": &opts.Fill, "require": &opts.Require} {
		if *dst, err = queryBool(r, key, false); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	table, err := h.views.Wide(r.Context(), queryList(r, "columns"), opts)
	if errors.Is(err, views.ErrUnknownColumn) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to build wide table")
		return
	}
	respondJSON(w, http.StatusOK, table)
}

// GetDashboard returns the monthly export table
// GET /api/dashboard?since=YYYY-MM-DD
func (h *ViewsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	since, err := queryDate(r, "since")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if since.IsZero() {
		since = h.since
	}

	table, err := h.views.Dashboard(r.Context(), since)
	if err != nil {
		h.fail(w, err, "Failed to build dashboard")
		return
	}
	respondJSON(w, http.StatusOK, table)
}

// GetSeriesMetrics returns the metric rows of one series
// GET /api/series/{id}/metrics?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ViewsHandler) GetSeriesMetrics(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(mux.Vars(r)["id"])
	if _, ok := h.registry.Lookup(id); !ok {
		respondError(w, http.StatusNotFound, "Unknown series "+id)
		return
	}

	from, err := queryDate(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		respondError(w, http.StatusBadRequest, "'to' is before 'from'")
		return
	}

	rows, err := h.views.SeriesMetrics(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, err, "Failed to load series metrics")
		return
	}
	if rows == nil {
		rows = []contracts.CalculatedMetric{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetCorrelation correlates one metric of two series
// GET /api/correlation?a=UNRATE&b=CPIAUCSL&metric=yoy_change&monthly=true
func (h *ViewsHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := strings.ToUpper(q.Get("a")), strings.ToUpper(q.Get("b"))
	for _, id := range []string{a, b} {
		if _, ok := h.registry.Lookup(id); !ok {
			respondError(w, http.StatusBadRequest, "'a' and 'b' must name registered series")
			return
		}
	}

	field := contracts.FieldValue
	if m := q.Get("metric"); m != "" {
		var err error
		if field, err = contracts.ParseMetricField(m); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	monthly, err := queryBool(r, "monthly", true)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.views.Correlation(r.Context(), a, b, field, monthly)
	if err != nil {
		h.fail(w, err, "Failed to correlate series")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// GetCyclePhase classifies the business cycle
// GET /api/cycle-phase
func (h *ViewsHandler) GetCyclePhase(w http.ResponseWriter, r *http.Request) {
	out, err := h.views.CyclePhase(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to classify cycle phase")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// GetYieldCurve returns the yield-curve recession signal
// GET /api/yield-curve
func (h *ViewsHandler) GetYieldCurve(w http.ResponseWriter, r *http.Request) {
	out, err := h.views.YieldCurve(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to read yield curve")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ViewsHandler) fail(w http.ResponseWriter, err error, message string) {
	h.logger.WithError(err).Error(message)
	respondError(w, http.StatusInternalServerError, message)
}
