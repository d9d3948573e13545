package contracts

import (
	"context"
	"iter"
)

// Stage identifies where in a run a series failed.
// Every log line, summary entry and etl_runs row uses these constants.
type Stage string

const (
	// StageRegistry resolves the descriptor (provider metadata + registry defaults)
	StageRegistry Stage = "registry"
	// StageExtract pages observations out of the provider
	StageExtract Stage = "extract"
	// StageTransform runs the metric engine over the merged history
	StageTransform Stage = "transform"
	// StageLoad writes the series batch in one transaction
	StageLoad Stage = "load"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Provider is the inbound source of descriptors and observations
type Provider interface {
	// Descriptor fetches provider-side metadata for one series
	Descriptor(ctx context.Context, seriesID string) (*SeriesDescriptor, error)

	// Observations yields observations in ascending date order, fetching
	// pages lazily. A *DataQualityError for one item does not end the
	// sequence; any other error is final.
	Observations(ctx context.Context, seriesID string, bounds Bounds) iter.Seq2[Observation, error]
}
