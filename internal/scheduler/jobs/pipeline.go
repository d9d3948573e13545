package jobs

import (
	"context"
	"fmt"

	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Runner is the part of the pipeline the job drives
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunSummary, error)
}

// PipelineJob refreshes every registered series
// ⭐ SSOT: the daily ETL schedule lives in this job
type PipelineJob struct {
	runner   Runner
	schedule string
	logger   *logger.Logger
}

// NewPipelineJob creates the ETL job for a cron expression (seconds first)
func NewPipelineJob(runner Runner, schedule string, log *logger.Logger) *PipelineJob {
	return &PipelineJob{runner: runner, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return "pipeline"
}

// Schedule returns the cron schedule
func (j *PipelineJob) Schedule() string {
	return j.schedule
}

// Run executes one pipeline run. Only a run where every series failed is an
// error; partial runs are reported through the run audit.
func (j *PipelineJob) Run(ctx context.Context) error {
	summary, err := j.runner.Run(ctx, pipeline.Options{})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	if summary.Status == store.RunFailed {
		return fmt.Errorf("pipeline run %s: all %d series failed", summary.RunID, summary.Total)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    summary.RunID,
		"status":    summary.Status,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed(),
	}).Info("Scheduled pipeline run done")
	return nil
}
