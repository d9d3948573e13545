// Package store persists descriptors, observations and calculated metrics.
// Backends live in the postgres and sqlite subpackages; both satisfy Store
// and pass the same conformance suite in storetest.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
)

// Store is the Observation Store and Metrics Store
// ⭐ SSOT: every read and write of persisted rows goes through this interface
type Store interface {
	// UpsertDescriptors inserts or refreshes series_metadata rows
	UpsertDescriptors(ctx context.Context, descriptors []contracts.SeriesDescriptor) error
	// UpsertObservations inserts new (series, date) keys and overwrites existing values
	UpsertObservations(ctx context.Context, observations []contracts.Observation) error
	// UpsertMetrics inserts or overwrites calculated_metrics rows
	UpsertMetrics(ctx context.Context, metrics []contracts.CalculatedMetric) error
	// SaveSeries writes descriptor, observations and metrics of one series in a
	// single transaction
	SaveSeries(ctx context.Context, batch contracts.SeriesBatch) error

	// Observations returns the full ascending history of one series
	Observations(ctx context.Context, seriesID string) ([]contracts.Observation, error)
	Descriptors(ctx context.Context) ([]contracts.SeriesDescriptor, error)
	Metrics(ctx context.Context, q MetricsQuery) ([]contracts.CalculatedMetric, error)
	// LatestMetrics returns the most recent metric row of every series joined
	// with its descriptor
	LatestMetrics(ctx context.Context) ([]LatestMetric, error)

	RecordRun(ctx context.Context, run RunRecord) error
	Runs(ctx context.Context, limit int) ([]RunRecord, error)

	// Rebuild deletes all observations and metrics. Descriptors and run
	// history are kept.
	Rebuild(ctx context.Context) error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
	Close() error
}

// MetricsQuery filters calculated_metrics. Empty fields do not filter.
type MetricsQuery struct {
	SeriesIDs []string
	From      time.Time
	To        time.Time
}

// LatestMetric pairs a series with its most recent metric row
type LatestMetric struct {
	Descriptor contracts.SeriesDescriptor
	Metric     contracts.CalculatedMetric
}

// Run status values
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// RunRecord is one row of the etl_runs audit table
type RunRecord struct {
	ID           string    `json:"run_id" db:"run_id"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
	Status       string    `json:"status" db:"status"`
	SeriesTotal  int       `json:"series_total" db:"series_total"`
	Succeeded    int       `json:"succeeded" db:"succeeded"`
	Failed       int       `json:"failed" db:"failed"`
	Rebuild      bool      `json:"rebuild" db:"rebuild"`
	RegistryHash string    `json:"registry_hash" db:"registry_hash"`
	FailedSeries string    `json:"failed_series" db:"failed_series"`
}

// ValidateBatch rejects a batch that mixes series or carries non-finite
// values, before any SQL runs
func ValidateBatch(batch contracts.SeriesBatch) (string, error) {
	id := ""
	switch {
	case batch.Descriptor != nil:
		id = batch.Descriptor.ID
	case len(batch.Observations) > 0:
		id = batch.Observations[0].SeriesID
	case len(batch.Metrics) > 0:
		id = batch.Metrics[0].SeriesID
	}

	for _, o := range batch.Observations {
		if o.SeriesID != id {
			return id, &contracts.PersistenceError{SeriesID: id, Op: "save_series", Err: fmt.Errorf("observation for %q in batch", o.SeriesID)}
		}
	}
	for _, m := range batch.Metrics {
		if m.SeriesID != id {
			return id, &contracts.PersistenceError{SeriesID: id, Op: "save_series", Err: fmt.Errorf("metric for %q in batch", m.SeriesID)}
		}
	}

	if err := CheckObservations(batch.Observations); err != nil {
		return id, err
	}
	return id, CheckMetrics(batch.Metrics)
}

// CheckObservations rejects NaN and Inf values
func CheckObservations(observations []contracts.Observation) error {
	for _, o := range observations {
		if err := contracts.CheckFinite("upsert_observations", o.SeriesID, o.Date, o.Value); err != nil {
			return err
		}
	}
	return nil
}

// CheckMetrics rejects NaN and Inf values
func CheckMetrics(metrics []contracts.CalculatedMetric) error {
	for _, m := range metrics {
		if err := contracts.CheckFinite("upsert_metrics", m.SeriesID, m.Date, m.Values()...); err != nil {
			return err
		}
	}
	return nil
}

// Wrap converts a driver error into a PersistenceError
func Wrap(op, seriesID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *contracts.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &contracts.PersistenceError{SeriesID: seriesID, Op: op, Err: err}
}
