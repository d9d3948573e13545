package jobs

import (
	"context"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
)

// Syncer refreshes series metadata
type Syncer interface {
	SyncRegistry(ctx context.Context) ([]contracts.SeriesDescriptor, []pipeline.SeriesFailure, error)
}

// RegistrySyncJob refreshes series_metadata weekly
type RegistrySyncJob struct {
	syncer Syncer
}

// NewRegistrySyncJob creates the metadata refresh job
func NewRegistrySyncJob(syncer Syncer) *RegistrySyncJob {
	return &RegistrySyncJob{syncer: syncer}
}

// Name returns the job name
func (j *RegistrySyncJob) Name() string {
	return "registry_sync"
}

// Schedule returns the cron schedule (Mondays at 05:30)
func (j *RegistrySyncJob) Schedule() string {
	return "0 30 5 * * 1"
}

// Run refreshes descriptors. Per-series misses are logged by the syncer.
func (j *RegistrySyncJob) Run(ctx context.Context) error {
	_, _, err := j.syncer.SyncRegistry(ctx)
	return err
}
