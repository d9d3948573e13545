package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
)

// Observations returns the ascending history of one series
func (s *Store) Observations(ctx context.Context, seriesID string) ([]contracts.Observation, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT series_id, observation_date, value, created_at, updated_at
		FROM observations
		WHERE series_id = $1
		ORDER BY observation_date`, seriesID)
	if err != nil {
		return nil, store.Wrap("observations", seriesID, err)
	}
	defer rows.Close()

	var out []contracts.Observation
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(&o.SeriesID, &o.Date, &o.Value, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, store.Wrap("observations", seriesID, err)
		}
		out = append(out, o)
	}
	return out, store.Wrap("observations", seriesID, rows.Err())
}

// Descriptors returns every descriptor ordered by category, title
func (s *Store) Descriptors(ctx context.Context) ([]contracts.SeriesDescriptor, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT series_id, title, frequency, units, seasonally_adjusted, category,
			COALESCE(last_updated, 'epoch'::timestamptz)
		FROM series_metadata
		ORDER BY category, title`)
	if err != nil {
		return nil, store.Wrap("descriptors", "", err)
	}
	defer rows.Close()

	var out []contracts.SeriesDescriptor
	for rows.Next() {
		var d contracts.SeriesDescriptor
		var freq string
		if err := rows.Scan(&d.ID, &d.Title, &freq, &d.Units, &d.SeasonallyAdjusted, &d.Category, &d.LastUpdated); err != nil {
			return nil, store.Wrap("descriptors", "", err)
		}
		d.Frequency = contracts.Frequency(freq)
		out = append(out, d)
	}
	return out, store.Wrap("descriptors", "", rows.Err())
}

const metricColumns = `m.series_id, m.observation_date, m.value, m.mom_change, m.yoy_change,
	m.rolling_avg_3m, m.rolling_avg_12m, m.z_score, m.percentile_rank, m.created_at, m.updated_at`

func scanMetric(row pgx.Row, m *contracts.CalculatedMetric, extra ...any) error {
	dest := []any{
		&m.SeriesID, &m.Date, &m.Value, &m.MoMChange, &m.YoYChange,
		&m.RollingAvg3, &m.RollingAvg12, &m.ZScore, &m.PercentileRank, &m.CreatedAt, &m.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Metrics returns metric rows ordered by series, date
func (s *Store) Metrics(ctx context.Context, q store.MetricsQuery) ([]contracts.CalculatedMetric, error) {
	var (
		where []string
		args  []any
	)
	if len(q.SeriesIDs) > 0 {
		args = append(args, q.SeriesIDs)
		where = append(where, fmt.Sprintf("m.series_id = ANY($%d)", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, fmt.Sprintf("m.observation_date >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, fmt.Sprintf("m.observation_date <= $%d", len(args)))
	}

	query := "SELECT " + metricColumns + " FROM calculated_metrics m"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.series_id, m.observation_date"

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("metrics", "", err)
	}
	defer rows.Close()

	var out []contracts.CalculatedMetric
	for rows.Next() {
		var m contracts.CalculatedMetric
		if err := scanMetric(rows, &m); err != nil {
			return nil, store.Wrap("metrics", "", err)
		}
		out = append(out, m)
	}
	return out, store.Wrap("metrics", "", rows.Err())
}

// LatestMetrics returns each series' most recent row with a value,
// ordered by category, title
func (s *Store) LatestMetrics(ctx context.Context) ([]store.LatestMetric, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT * FROM (
			SELECT DISTINCT ON (d.series_id) `+metricColumns+`,
				d.title, d.frequency, d.units, d.seasonally_adjusted, d.category,
				COALESCE(d.last_updated, 'epoch'::timestamptz)
			FROM series_metadata d
			JOIN calculated_metrics m ON m.series_id = d.series_id
			WHERE m.value IS NOT NULL
			ORDER BY d.series_id, m.observation_date DESC
		) latest
		ORDER BY category, title`)
	if err != nil {
		return nil, store.Wrap("latest_metrics", "", err)
	}
	defer rows.Close()

	var out []store.LatestMetric
	for rows.Next() {
		var lm store.LatestMetric
		var freq string
		d := &lm.Descriptor
		if err := scanMetric(rows, &lm.Metric,
			&d.Title, &freq, &d.Units, &d.SeasonallyAdjusted, &d.Category, &d.LastUpdated); err != nil {
			return nil, store.Wrap("latest_metrics", "", err)
		}
		d.ID = lm.Metric.SeriesID
		d.Frequency = contracts.Frequency(freq)
		out = append(out, lm)
	}
	return out, store.Wrap("latest_metrics", "", rows.Err())
}

// RecordRun appends to the run audit
func (s *Store) RecordRun(ctx context.Context, run store.RunRecord) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO etl_runs (run_id, started_at, finished_at, status, series_total,
			succeeded, failed, rebuild, registry_hash, failed_series)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status, run.SeriesTotal,
		run.Succeeded, run.Failed, run.Rebuild, run.RegistryHash, run.FailedSeries)
	return store.Wrap("record_run", "", err)
}

// Runs returns the most recent runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, status, series_total, succeeded,
			failed, rebuild, registry_hash, failed_series
		FROM etl_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, store.Wrap("runs", "", err)
	}
	defer rows.Close()

	var out []store.RunRecord
	for rows.Next() {
		var r store.RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.SeriesTotal,
			&r.Succeeded, &r.Failed, &r.Rebuild, &r.RegistryHash, &r.FailedSeries); err != nil {
			return nil, store.Wrap("runs", "", err)
		}
		out = append(out, r)
	}
	return out, store.Wrap("runs", "", rows.Err())
}

// Rebuild truncates observations and metrics
func (s *Store) Rebuild(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, "TRUNCATE calculated_metrics, observations"); err != nil {
		return store.Wrap("rebuild", "", err)
	}
	s.logger.Warn("Observations and metrics truncated for rebuild")
	return nil
}
