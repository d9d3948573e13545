package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Runner triggers pipeline runs
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunSummary, error)
}

// RunLister reads the run audit
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// PipelineHandler triggers runs and lists past ones
type PipelineHandler struct {
	runner Runner
	runs   RunLister
	logger *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(runner Runner, runs RunLister, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{runner: runner, runs: runs, logger: log}
}

// RunRequest is the body of POST /api/pipeline/run. Every field is optional.
type RunRequest struct {
	Series  []string `json:"series"`
	Rebuild bool     `json:"rebuild"`
	Start   string   `json:"start"`
	Workers int      `json:"workers"`
}

// Run executes a pipeline run and returns its summary
// POST /api/pipeline/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts := pipeline.Options{SeriesIDs: req.Series, Rebuild: req.Rebuild, Workers: req.Workers}
	if req.Start != "" {
		start, err := contracts.ParseDate(req.Start)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'start' date format (expected YYYY-MM-DD)")
			return
		}
		opts.Start = start
	}

	h.logger.WithFields(map[string]interface{}{
		"series":  len(req.Series),
		"rebuild": req.Rebuild,
	}).Info("Pipeline run triggered")

	// a dropped client does not abort the run
	summary, err := h.runner.Run(context.WithoutCancel(r.Context()), opts)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Pipeline run failed")
		respondError(w, http.StatusInternalServerError, "Pipeline run failed")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// ListRuns returns the most recent runs
// GET /api/runs?limit=20
func (h *PipelineHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (1-500)")
			return
		}
		limit = n
	}

	runs, err := h.runs.Runs(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	respondJSON(w, http.StatusOK, runs)
}
