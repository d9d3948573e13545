package pipeline

import (
	"context"
	"fmt"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
)

// SyncRegistry refreshes series_metadata from provider metadata without
// touching observations. A series the provider cannot describe keeps its
// registered descriptor and is reported as a failure.
func (p *Pipeline) SyncRegistry(ctx context.Context) ([]contracts.SeriesDescriptor, []SeriesFailure, error) {
	var (
		descriptors []contracts.SeriesDescriptor
		failures    []SeriesFailure
	)

	for _, registered := range p.registry.Descriptors() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		remote, err := p.provider.Descriptor(ctx, registered.ID)
		if err != nil {
			p.logger.WithSeries(registered.ID).WithError(err).Warn("Keeping registered descriptor")
			failures = append(failures, SeriesFailure{
				SeriesID: registered.ID,
				Stage:    contracts.StageRegistry,
				Error:    err.Error(),
				Err:      err,
			})
			remote = nil
		}
		descriptors = append(descriptors, registry.Merge(registered, remote))
	}

	if err := p.store.UpsertDescriptors(ctx, descriptors); err != nil {
		return nil, failures, fmt.Errorf("upsert descriptors: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"series": len(descriptors),
		"failed": len(failures),
	}).Info("Registry synced")

	return descriptors, failures, nil
}
