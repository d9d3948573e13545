package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RuizOsvaldo/economic-dashboard/internal/api"
	"github.com/RuizOsvaldo/economic-dashboard/internal/api/handlers"
	"github.com/RuizOsvaldo/economic-dashboard/internal/monitoring"
	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                    - Store and cache health
  GET  /metrics                   - Prometheus metrics
  GET  /api/registry              - Tracked series
  GET  /api/snapshot              - Latest reading per indicator
  GET  /api/dashboard             - Monthly dashboard table
  GET  /api/series/wide           - Pivoted table
  GET  /api/series/{id}/metrics   - Metric rows of one series
  GET  /api/correlation           - Pearson correlation
  GET  /api/cycle-phase           - Business cycle phase
  GET  /api/yield-curve           - Yield curve signal
  POST /api/pipeline/run          - Trigger a pipeline run (needs FRED_API_KEY)
  GET  /api/runs                  - Run audit

Example:
  go run ./cmd/econ api
  go run ./cmd/econ api --port 8080 --scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", false, "also run the scheduler in this process")
}

// unavailableRunner answers pipeline triggers when no FRED key is configured
type unavailableRunner struct{ err error }

func (u unavailableRunner) Run(context.Context, pipeline.Options) (*pipeline.RunSummary, error) {
	return nil, u.err
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Economic Dashboard API Server ===")

	ctx := context.Background()
	a, err := newApp(ctx, appOptions{pipeline: true})
	keyErr := err
	if err != nil {
		// serve read-only views when FRED is not configured
		if a, err = newApp(ctx, appOptions{}); err != nil {
			return err
		}
		a.log.WithError(keyErr).Warn("Pipeline endpoints disabled")
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var metrics *monitoring.Metrics
	if a.cfg.MetricsEnabled {
		metrics = a.metrics
	}

	var runner handlers.Runner = unavailableRunner{err: keyErr}
	if a.pipeline != nil {
		runner = a.pipeline
	}

	router := api.NewRouter(api.Handlers{
		Health:   handlers.NewHealthHandler(a.store, a.redis),
		Views:    handlers.NewViewsHandler(a.views, a.registry, a.cfg.Export.Since, a.log),
		Pipeline: handlers.NewPipelineHandler(runner, a.store, a.log),
	}, metrics, a.log)

	server := api.New(a.cfg, a.log, router)

	if apiScheduler && a.pipeline != nil {
		sched, err := newScheduler(ctx, a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(runCtx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
