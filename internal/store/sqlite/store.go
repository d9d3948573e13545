// Package sqlite is the embedded Store backend (mattn/go-sqlite3 through
// sqlx). One writer connection; used for local runs and tests.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/database"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// Store implements store.Store on SQLite
type Store struct {
	db     *database.SQLite
	logger *logger.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option customizes a Store
type Option func(*Store)

// WithClock overrides the clock used for created_at / updated_at
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open SQLite handle
func New(db *database.SQLite, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: log.Module("store.sqlite"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens path and migrates the schema
func Open(ctx context.Context, path string, log *logger.Logger, opts ...Option) (*Store, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	s := New(db, log, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates tables and views
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return store.Wrap("migrate", "", err)
	}
	s.logger.WithField("path", s.db.Path()).Debug("Schema migrated")
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	return s.db.HealthCheck(ctx)
}

const upsertDescriptorSQL = `
INSERT INTO series_metadata (series_id, title, frequency, units, seasonally_adjusted, category, last_updated)
VALUES (:series_id, :title, :frequency, :units, :seasonally_adjusted, :category, :last_updated)
ON CONFLICT (series_id) DO UPDATE SET
	title = excluded.title,
	frequency = excluded.frequency,
	units = excluded.units,
	seasonally_adjusted = excluded.seasonally_adjusted,
	category = excluded.category,
	last_updated = excluded.last_updated`

const upsertObservationSQL = `
INSERT INTO observations (series_id, observation_date, value, created_at, updated_at)
VALUES (:series_id, :observation_date, :value, :created_at, :updated_at)
ON CONFLICT (series_id, observation_date) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

const upsertMetricSQL = `
INSERT INTO calculated_metrics (
	series_id, observation_date, value, mom_change, yoy_change,
	rolling_avg_3m, rolling_avg_12m, z_score, percentile_rank, created_at, updated_at
) VALUES (
	:series_id, :observation_date, :value, :mom_change, :yoy_change,
	:rolling_avg_3m, :rolling_avg_12m, :z_score, :percentile_rank, :created_at, :updated_at
)
ON CONFLICT (series_id, observation_date) DO UPDATE SET
	value = excluded.value,
	mom_change = excluded.mom_change,
	yoy_change = excluded.yoy_change,
	rolling_avg_3m = excluded.rolling_avg_3m,
	rolling_avg_12m = excluded.rolling_avg_12m,
	z_score = excluded.z_score,
	percentile_rank = excluded.percentile_rank,
	updated_at = excluded.updated_at`

// UpsertDescriptors inserts or refreshes series_metadata rows
func (s *Store) UpsertDescriptors(ctx context.Context, descriptors []contracts.SeriesDescriptor) error {
	return s.inTx(ctx, "upsert_descriptors", "", func(tx *sqlx.Tx) error {
		return s.upsertDescriptors(ctx, tx, descriptors)
	})
}

// UpsertObservations inserts or overwrites observations
func (s *Store) UpsertObservations(ctx context.Context, observations []contracts.Observation) error {
	if err := store.CheckObservations(observations); err != nil {
		return err
	}
	return s.inTx(ctx, "upsert_observations", "", func(tx *sqlx.Tx) error {
		return s.upsertObservations(ctx, tx, observations)
	})
}

// UpsertMetrics inserts or overwrites calculated metrics
func (s *Store) UpsertMetrics(ctx context.Context, metrics []contracts.CalculatedMetric) error {
	if err := store.CheckMetrics(metrics); err != nil {
		return err
	}
	return s.inTx(ctx, "upsert_metrics", "", func(tx *sqlx.Tx) error {
		return s.upsertMetrics(ctx, tx, metrics)
	})
}

// SaveSeries writes one series batch in a single transaction
func (s *Store) SaveSeries(ctx context.Context, batch contracts.SeriesBatch) error {
	seriesID, err := store.ValidateBatch(batch)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.inTx(ctx, "save_series", seriesID, func(tx *sqlx.Tx) error {
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

func (s *Store) upsertDescriptors(ctx context.Context, tx *sqlx.Tx, descriptors []contracts.SeriesDescriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, upsertDescriptorSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for _, d := range descriptors {
		if _, err := stmt.ExecContext(ctx, toDescriptorRow(d, now)); err != nil {
			return fmt.Errorf("series %s: %w", d.ID, err)
		}
	}
	return nil
}

func (s *Store) upsertObservations(ctx context.Context, tx *sqlx.Tx, observations []contracts.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, upsertObservationSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for _, o := range observations {
		if _, err := stmt.ExecContext(ctx, toObservationRow(o, now)); err != nil {
			return fmt.Errorf("observation %s@%s: %w", o.SeriesID, contracts.FormatDate(o.Date), err)
		}
	}
	return nil
}

func (s *Store) upsertMetrics(ctx context.Context, tx *sqlx.Tx, metrics []contracts.CalculatedMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, upsertMetricSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, toMetricRow(m, now)); err != nil {
			return fmt.Errorf("metric %s@%s: %w", m.SeriesID, contracts.FormatDate(m.Date), err)
		}
	}
	return nil
}

// inTx runs fn in a transaction and rolls back on any error
func (s *Store) inTx(ctx context.Context, op, seriesID string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return store.Wrap(op, seriesID, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return store.Wrap(op, seriesID, err)
	}
	if err := tx.Commit(); err != nil {
		return store.Wrap(op, seriesID, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Observations returns the ascending history of one series
func (s *Store) Observations(ctx context.Context, seriesID string) ([]contracts.Observation, error) {
	var rows []observationRow
	err := s.db.DB.SelectContext(ctx, &rows, `
		SELECT series_id, observation_date, value, created_at, updated_at
		FROM observations
		WHERE series_id = ?
		ORDER BY observation_date`, seriesID)
	if err != nil {
		return nil, store.Wrap("observations", seriesID, err)
	}

	out := make([]contracts.Observation, 0, len(rows))
	for _, r := range rows {
		o, err := r.observation()
		if err != nil {
			return nil, store.Wrap("observations", seriesID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Descriptors returns every descriptor ordered by category, title
func (s *Store) Descriptors(ctx context.Context) ([]contracts.SeriesDescriptor, error) {
	var rows []descriptorRow
	err := s.db.DB.SelectContext(ctx, &rows, `
		SELECT series_id, title, frequency, units, seasonally_adjusted, category, last_updated
		FROM series_metadata
		ORDER BY category, title`)
	if err != nil {
		return nil, store.Wrap("descriptors", "", err)
	}

	out := make([]contracts.SeriesDescriptor, len(rows))
	for i, r := range rows {
		out[i] = r.descriptor()
	}
	return out, nil
}

const metricColumns = `m.series_id, m.observation_date, m.value, m.mom_change, m.yoy_change,
	m.rolling_avg_3m, m.rolling_avg_12m, m.z_score, m.percentile_rank, m.created_at, m.updated_at`

// Metrics returns metric rows ordered by series, date
func (s *Store) Metrics(ctx context.Context, q store.MetricsQuery) ([]contracts.CalculatedMetric, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(q.SeriesIDs) > 0 {
		where = append(where, "m.series_id IN (?)")
		args = append(args, q.SeriesIDs)
	}
	if !q.From.IsZero() {
		where = append(where, "m.observation_date >= ?")
		args = append(args, contracts.FormatDate(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "m.observation_date <= ?")
		args = append(args, contracts.FormatDate(q.To))
	}

	query := "SELECT " + metricColumns + " FROM calculated_metrics m"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.series_id, m.observation_date"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, store.Wrap("metrics", "", err)
	}

	var rows []metricRow
	if err := s.db.DB.SelectContext(ctx, &rows, s.db.DB.Rebind(query), args...); err != nil {
		return nil, store.Wrap("metrics", "", err)
	}

	out := make([]contracts.CalculatedMetric, 0, len(rows))
	for _, r := range rows {
		m, err := r.metric()
		if err != nil {
			return nil, store.Wrap("metrics", r.SeriesID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// LatestMetrics returns each series' most recent row with a value,
// ordered by category, title
func (s *Store) LatestMetrics(ctx context.Context) ([]store.LatestMetric, error) {
	var rows []latestRow
	err := s.db.DB.SelectContext(ctx, &rows, `
		SELECT `+metricColumns+`,
			d.title, d.frequency, d.units, d.seasonally_adjusted, d.category, d.last_updated
		FROM series_metadata d
		JOIN calculated_metrics m ON m.series_id = d.series_id
		WHERE m.observation_date = (
			SELECT MAX(x.observation_date) FROM calculated_metrics x
			WHERE x.series_id = d.series_id AND x.value IS NOT NULL
		)
		ORDER BY d.category, d.title`)
	if err != nil {
		return nil, store.Wrap("latest_metrics", "", err)
	}

	out := make([]store.LatestMetric, 0, len(rows))
	for _, r := range rows {
		m, err := r.metric()
		if err != nil {
			return nil, store.Wrap("latest_metrics", r.SeriesID, err)
		}
		desc := descriptorRow{
			SeriesID:           r.SeriesID,
			Title:              r.Title,
			Frequency:          r.Frequency,
			Units:              r.Units,
			SeasonallyAdjusted: r.SeasonallyAdjusted,
			Category:           r.Category,
			LastUpdated:        r.LastUpdated,
		}.descriptor()
		out = append(out, store.LatestMetric{Descriptor: desc, Metric: m})
	}
	return out, nil
}

// RecordRun appends to the run audit
func (s *Store) RecordRun(ctx context.Context, run store.RunRecord) error {
	_, err := s.db.DB.NamedExecContext(ctx, `
		INSERT INTO etl_runs (run_id, started_at, finished_at, status, series_total,
			succeeded, failed, rebuild, registry_hash, failed_series)
		VALUES (:run_id, :started_at, :finished_at, :status, :series_total,
			:succeeded, :failed, :rebuild, :registry_hash, :failed_series)`,
		runRow{
			ID:           run.ID,
			StartedAt:    formatTime(run.StartedAt),
			FinishedAt:   formatTime(run.FinishedAt),
			Status:       run.Status,
			SeriesTotal:  run.SeriesTotal,
			Succeeded:    run.Succeeded,
			Failed:       run.Failed,
			Rebuild:      run.Rebuild,
			RegistryHash: run.RegistryHash,
			FailedSeries: run.FailedSeries,
		})
	return store.Wrap("record_run", "", err)
}

// Runs returns the most recent runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := s.db.DB.SelectContext(ctx, &rows, `
		SELECT run_id, started_at, finished_at, status, series_total, succeeded,
			failed, rebuild, registry_hash, failed_series
		FROM etl_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, store.Wrap("runs", "", err)
	}

	out := make([]store.RunRecord, len(rows))
	for i, r := range rows {
		out[i] = store.RunRecord{
			ID:           r.ID,
			StartedAt:    parseTime(r.StartedAt),
			FinishedAt:   parseTime(r.FinishedAt),
			Status:       r.Status,
			SeriesTotal:  r.SeriesTotal,
			Succeeded:    r.Succeeded,
			Failed:       r.Failed,
			Rebuild:      r.Rebuild,
			RegistryHash: r.RegistryHash,
			FailedSeries: r.FailedSeries,
		}
	}
	return out, nil
}

// Rebuild deletes every observation and metric
func (s *Store) Rebuild(ctx context.Context) error {
	err := s.inTx(ctx, "rebuild", "", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM calculated_metrics"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM observations")
		return err
	})
	if err == nil {
		s.logger.Warn("Observations and metrics deleted for rebuild")
	}
	return err
}
