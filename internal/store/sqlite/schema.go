package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS series_metadata (
	series_id           TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	frequency           TEXT NOT NULL CHECK (frequency IN ('daily', 'weekly', 'monthly', 'quarterly')),
	units               TEXT NOT NULL DEFAULT '',
	seasonally_adjusted INTEGER NOT NULL DEFAULT 0,
	category            TEXT NOT NULL,
	last_updated        TEXT
);

CREATE TABLE IF NOT EXISTS observations (
	series_id        TEXT NOT NULL REFERENCES series_metadata(series_id),
	observation_date TEXT NOT NULL,
	value            REAL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	PRIMARY KEY (series_id, observation_date)
);

CREATE TABLE IF NOT EXISTS calculated_metrics (
	series_id        TEXT NOT NULL REFERENCES series_metadata(series_id),
	observation_date TEXT NOT NULL,
	value            REAL,
	mom_change       REAL,
	yoy_change       REAL,
	rolling_avg_3m   REAL,
	rolling_avg_12m  REAL,
	z_score          REAL,
	percentile_rank  REAL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	PRIMARY KEY (series_id, observation_date),
	FOREIGN KEY (series_id, observation_date) REFERENCES observations(series_id, observation_date),
	CHECK (percentile_rank IS NULL OR (percentile_rank >= 0 AND percentile_rank <= 100))
);

CREATE INDEX IF NOT EXISTS idx_metrics_date ON calculated_metrics(observation_date);

CREATE TABLE IF NOT EXISTS etl_runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	status        TEXT NOT NULL,
	series_total  INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	rebuild       INTEGER NOT NULL DEFAULT 0,
	registry_hash TEXT NOT NULL DEFAULT '',
	failed_series TEXT NOT NULL DEFAULT ''
);

CREATE VIEW IF NOT EXISTS economic_dashboard_view AS
SELECT
	m.observation_date, m.series_id, d.title, d.category, d.units,
	m.value, m.mom_change, m.yoy_change, m.rolling_avg_3m, m.rolling_avg_12m,
	m.z_score, m.percentile_rank
FROM calculated_metrics m
JOIN series_metadata d ON d.series_id = m.series_id;

CREATE VIEW IF NOT EXISTS current_snapshot_view AS
SELECT
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
WHERE m.observation_date = (
	SELECT MAX(x.observation_date) FROM calculated_metrics x
	WHERE x.series_id = d.series_id AND x.value IS NOT NULL
)
ORDER BY d.category, d.title;
`
