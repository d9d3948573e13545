package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the ETL pipeline",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run [series...]",
	Short: "Fetch, compute and store metrics",
	Long: `Runs extract, transform and load for the given series, or for every
registered series when none are named. A failing series does not stop
the others; the run is recorded in the etl_runs audit table.

Example:
  go run ./cmd/econ pipeline run
  go run ./cmd/econ pipeline run UNRATE CPIAUCSL --start 2020-01-01
  go run ./cmd/econ pipeline run --rebuild`,
	RunE: runPipeline,
}

var (
	runRebuild bool
	runStart   string
	runWorkers int
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)

	pipelineRunCmd.Flags().BoolVar(&runRebuild, "rebuild", false, "delete stored observations and metrics first")
	pipelineRunCmd.Flags().StringVar(&runStart, "start", "", "observation start date (YYYY-MM-DD, default FRED_START_DATE)")
	pipelineRunCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent series (default PIPELINE_WORKERS)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{SeriesIDs: args, Rebuild: runRebuild, Workers: runWorkers}
	if runStart != "" {
		start, err := contracts.ParseDate(runStart)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		opts.Start = start
	}

	a, err := newApp(ctx, appOptions{pipeline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if runRebuild {
		PrintWarning("Rebuild: stored observations and metrics will be replaced")
	}

	summary, err := a.pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	PrintRunSummary(summary)

	if summary.Status == store.RunFailed {
		return fmt.Errorf("pipeline run %s failed for all %d series", summary.RunID, summary.Total)
	}
	return nil
}
