package jobs

import (
	"context"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/export"
)

// ExportJob rewrites the dashboard exports after the daily run
type ExportJob struct {
	exporter *export.Exporter
	targets  []export.Target
	since    time.Time
	schedule string
}

// NewExportJob creates the export job
func NewExportJob(exporter *export.Exporter, since time.Time, schedule string, targets ...export.Target) *ExportJob {
	return &ExportJob{exporter: exporter, targets: targets, since: since, schedule: schedule}
}

// Name returns the job name
func (j *ExportJob) Name() string {
	return "export"
}

// Schedule returns the cron schedule
func (j *ExportJob) Schedule() string {
	return j.schedule
}

// Run writes every target
func (j *ExportJob) Run(ctx context.Context) error {
	return j.exporter.Export(ctx, j.since, j.targets...)
}
