package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RuizOsvaldo/economic-dashboard/internal/export"
	"github.com/RuizOsvaldo/economic-dashboard/internal/scheduler"
	"github.com/RuizOsvaldo/economic-dashboard/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the ETL on a schedule",
	Long: `Starts the scheduler or runs one of its jobs right away.

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - run one job now

Example:
  go run ./cmd/econ scheduler start
  go run ./cmd/econ scheduler list
  go run ./cmd/econ scheduler run pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Schedules every job and blocks until Ctrl+C.

Registered jobs:
- pipeline:      PIPELINE_SCHEDULE (default daily 06:00)
- export:        EXPORT_SCHEDULE (default daily 06:30)
- registry_sync: Mondays 05:30`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers the pipeline, export and registry jobs
func newScheduler(ctx context.Context, a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.WithRetry(2, 5*time.Minute))

	targets := []export.Target{export.CSVTarget{Dir: a.cfg.Export.OutputDir}}
	if a.cfg.Export.SheetID != "" {
		sheetTargets, err := exportTargets(ctx, a, []string{"sheets"})
		if err != nil {
			a.log.WithError(err).Warn("Sheets export disabled")
		} else {
			targets = append(targets, sheetTargets...)
		}
	}

	for _, job := range []scheduler.Job{
		jobs.NewPipelineJob(a.pipeline, a.cfg.Pipeline.Schedule, a.log),
		jobs.NewExportJob(export.NewExporter(a.views, a.log), a.cfg.Export.Since, a.cfg.Export.Schedule, targets...),
		jobs.NewRegistrySyncJob(a.pipeline),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Economic Dashboard Scheduler ===")

	ctx := context.Background()
	a, err := newApp(ctx, appOptions{pipeline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()

	fmt.Println()
	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.Jobs() {
		next, _ := sched.NextRun(name)
		fmt.Printf("  - %-14s next %s\n", name, next.Format(time.RFC3339))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{pipeline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.Stats()
	widths := []int{14, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, name := range sched.Jobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{pipeline: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(ctx, a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		return err
	}

	if !result.Success {
		PrintError(fmt.Sprintf("Job %s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}
