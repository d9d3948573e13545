package handlers

import (
	"context"
	"net/http"

	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
)

// StoreChecker reports store health
type StoreChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// CachePinger reports cache health
type CachePinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	store StoreChecker
	cache CachePinger
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(store StoreChecker, cache CachePinger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Store   *database.HealthStatus `json:"store"`
	Cache   string                 `json:"cache"`
}

// Check reports store and cache health; an unhealthy store is a 503
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Service: "economic-dashboard", Cache: "disabled"}

	status, err := h.store.HealthCheck(r.Context())
	resp.Store = status
	if err != nil || status == nil || !status.Healthy {
		resp.Status = "degraded"
	}

	if h.cache != nil && h.cache.Enabled() {
		resp.Cache = "ok"
		if err := h.cache.Ping(r.Context()); err != nil {
			resp.Cache = "unavailable"
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}
