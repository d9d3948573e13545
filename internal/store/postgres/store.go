// Package postgres is the production Store backend on a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Store implements store.Store on Postgres
type Store struct {
	db     *database.DB
	logger *logger.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Option customizes a Store
type Option func(*Store)

// WithClock overrides the clock used for created_at / updated_at
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps a connected pool
func New(db *database.DB, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: log.Module("store.postgres"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates tables and views
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, schema); err != nil {
		return store.Wrap("migrate", "", err)
	}
	s.logger.Debug("Schema migrated")
	return nil
}

// Close closes the pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	return s.db.HealthCheck(ctx)
}

const upsertDescriptorSQL = `
INSERT INTO series_metadata (series_id, title, frequency, units, seasonally_adjusted, category, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (series_id) DO UPDATE SET
	title = EXCLUDED.title,
	frequency = EXCLUDED.frequency,
	units = EXCLUDED.units,
	seasonally_adjusted = EXCLUDED.seasonally_adjusted,
	category = EXCLUDED.category,
	last_updated = EXCLUDED.last_updated`

const upsertObservationSQL = `
INSERT INTO observations (series_id, observation_date, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (series_id, observation_date) DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = EXCLUDED.updated_at`

const upsertMetricSQL = `
INSERT INTO calculated_metrics (
	series_id, observation_date, value, mom_change, yoy_change,
	rolling_avg_3m, rolling_avg_12m, z_score, percentile_rank, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (series_id, observation_date) DO UPDATE SET
	value = EXCLUDED.value,
	mom_change = EXCLUDED.mom_change,
	yoy_change = EXCLUDED.yoy_change,
	rolling_avg_3m = EXCLUDED.rolling_avg_3m,
	rolling_avg_12m = EXCLUDED.rolling_avg_12m,
	z_score = EXCLUDED.z_score,
	percentile_rank = EXCLUDED.percentile_rank,
	updated_at = EXCLUDED.updated_at`

// UpsertDescriptors inserts or refreshes series_metadata rows
func (s *Store) UpsertDescriptors(ctx context.Context, descriptors []contracts.SeriesDescriptor) error {
	return s.inTx(ctx, "upsert_descriptors", "", func(tx pgx.Tx) error {
		return s.upsertDescriptors(ctx, tx, descriptors)
	})
}

// UpsertObservations inserts or overwrites observations
func (s *Store) UpsertObservations(ctx context.Context, observations []contracts.Observation) error {
	if err := store.CheckObservations(observations); err != nil {
		return err
	}
	return s.inTx(ctx, "upsert_observations", "", func(tx pgx.Tx) error {
		return s.upsertObservations(ctx, tx, observations)
	})
}

// UpsertMetrics inserts or overwrites calculated metrics
func (s *Store) UpsertMetrics(ctx context.Context, metrics []contracts.CalculatedMetric) error {
	if err := store.CheckMetrics(metrics); err != nil {
		return err
	}
	return s.inTx(ctx, "upsert_metrics", "", func(tx pgx.Tx) error {
		return s.upsertMetrics(ctx, tx, metrics)
	})
}

// SaveSeries writes one series batch in a single transaction. An advisory
// lock on the series id serializes concurrent writers of the same series.
func (s *Store) SaveSeries(ctx context.Context, batch contracts.SeriesBatch) error {
	seriesID, err := store.ValidateBatch(batch)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.inTx(ctx, "save_series", seriesID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", seriesID); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if batch.Descriptor != nil {
			if err := s.upsertDescriptors(ctx, tx, []contracts.SeriesDescriptor{*batch.Descriptor}); err != nil {
				return err
			}
		}
		if err := s.upsertObservations(ctx, tx, batch.Observations); err != nil {
			return err
		}
		return s.upsertMetrics(ctx, tx, batch.Metrics)
	})
	if err != nil {
		return err
	}

	s.logger.WithSeries(seriesID).WithFields(map[string]interface{}{
		"observations": len(batch.Observations),
		"metrics":      len(batch.Metrics),
		"duration":     time.Since(start),
	}).Debug("Series saved")
	return nil
}

func (s *Store) upsertDescriptors(ctx context.Context, q querier, descriptors []contracts.SeriesDescriptor) error {
	if len(descriptors) == 0 {
		return nil
	}

	now := s.now().UTC()
	batch := &pgx.Batch{}
	for _, d := range descriptors {
		updated := d.LastUpdated
		if updated.IsZero() {
			updated = now
		}
		batch.Queue(upsertDescriptorSQL, d.ID, d.Title, string(d.Frequency), d.Units,
			d.SeasonallyAdjusted, d.Category, updated)
	}
	return execBatch(ctx, q, batch)
}

func (s *Store) upsertObservations(ctx context.Context, q querier, observations []contracts.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	now := s.now().UTC()
	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(upsertObservationSQL, o.SeriesID, o.Date, o.Value, now)
	}
	return execBatch(ctx, q, batch)
}

func (s *Store) upsertMetrics(ctx context.Context, q querier, metrics []contracts.CalculatedMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	now := s.now().UTC()
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(upsertMetricSQL, m.SeriesID, m.Date, m.Value, m.MoMChange, m.YoYChange,
			m.RollingAvg3, m.RollingAvg12, m.ZScore, m.PercentileRank, now)
	}
	return execBatch(ctx, q, batch)
}

func execBatch(ctx context.Context, q querier, batch *pgx.Batch) error {
	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return br.Close()
}

// inTx runs fn in a transaction and rolls back on any error
func (s *Store) inTx(ctx context.Context, op, seriesID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return store.Wrap(op, seriesID, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return store.Wrap(op, seriesID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Wrap(op, seriesID, fmt.Errorf("commit: %w", err))
	}
	return nil
}
