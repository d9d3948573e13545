package postgres

const schema = `
CREATE TABLE IF NOT EXISTS series_metadata (
	series_id           VARCHAR(64) PRIMARY KEY,
	title               TEXT NOT NULL,
	frequency           VARCHAR(16) NOT NULL CHECK (frequency IN ('daily', 'weekly', 'monthly', 'quarterly')),
	units               TEXT NOT NULL DEFAULT '',
	seasonally_adjusted BOOLEAN NOT NULL DEFAULT FALSE,
	category            TEXT NOT NULL,
	last_updated        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS observations (
	series_id        VARCHAR(64) NOT NULL REFERENCES series_metadata(series_id),
	observation_date DATE NOT NULL,
	value            DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (series_id, observation_date)
);

CREATE TABLE IF NOT EXISTS calculated_metrics (
	series_id        VARCHAR(64) NOT NULL REFERENCES series_metadata(series_id),
	observation_date DATE NOT NULL,
	value            DOUBLE PRECISION,
	mom_change       DOUBLE PRECISION,
	yoy_change       DOUBLE PRECISION,
	rolling_avg_3m   DOUBLE PRECISION,
	rolling_avg_12m  DOUBLE PRECISION,
	z_score          DOUBLE PRECISION,
	percentile_rank  DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (series_id, observation_date),
	CONSTRAINT calculated_metrics_observation_fk
		FOREIGN KEY (series_id, observation_date) REFERENCES observations(series_id, observation_date),
	CHECK (percentile_rank IS NULL OR (percentile_rank >= 0 AND percentile_rank <= 100))
);

DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'calculated_metrics_observation_fk') THEN
		ALTER TABLE calculated_metrics ADD CONSTRAINT calculated_metrics_observation_fk
			FOREIGN KEY (series_id, observation_date) REFERENCES observations(series_id, observation_date);
	END IF;
END $$;

CREATE INDEX IF NOT EXISTS idx_metrics_date ON calculated_metrics(observation_date);

CREATE TABLE IF NOT EXISTS etl_runs (
	run_id        VARCHAR(36) PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	status        VARCHAR(16) NOT NULL,
	series_total  INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	rebuild       BOOLEAN NOT NULL DEFAULT FALSE,
	registry_hash TEXT NOT NULL DEFAULT '',
	failed_series TEXT NOT NULL DEFAULT ''
);

CREATE OR REPLACE VIEW economic_dashboard_view AS
SELECT
	m.observation_date, m.series_id, d.title, d.category, d.units,
	m.value, m.mom_change, m.yoy_change, m.rolling_avg_3m, m.rolling_avg_12m,
	m.z_score, m.percentile_rank
FROM calculated_metrics m
JOIN series_metadata d ON d.series_id = m.series_id;

CREATE OR REPLACE VIEW current_snapshot_view AS
SELECT * FROM (
	SELECT DISTINCT ON (d.series_id)
		d.series_id, d.title, d.category, d.units, m.observation_date,
		m.value, m.mom_change, m.yoy_change, m.z_score, m.percentile_rank,
		CASE
			WHEN m.z_score > 1.5 THEN 'significantly above normal'
			WHEN m.z_score > 0.5 THEN 'above normal'
			WHEN m.z_score < -1.5 THEN 'significantly below normal'
			WHEN m.z_score < -0.5 THEN 'below normal'
			ELSE 'normal range'
		END AS status
	FROM series_metadata d
	JOIN calculated_metrics m ON m.series_id = d.series_id
	WHERE m.value IS NOT NULL
	ORDER BY d.series_id, m.observation_date DESC
) latest
ORDER BY category, title;
`
