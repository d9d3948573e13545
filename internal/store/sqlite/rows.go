package sqlite

import (
	"database/sql"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// fixed width so text ordering is chronological
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type descriptorRow struct {
	SeriesID           string         `db:"series_id"`
	Title              string         `db:"title"`
	Frequency          string         `db:"frequency"`
	Units              string         `db:"units"`
	SeasonallyAdjusted bool           `db:"seasonally_adjusted"`
	Category           string         `db:"category"`
	LastUpdated        sql.NullString `db:"last_updated"`
}

type observationRow struct {
	SeriesID  string          `db:"series_id"`
	Date      string          `db:"observation_date"`
	Value     sql.NullFloat64 `db:"value"`
	CreatedAt string          `db:"created_at"`
	UpdatedAt string          `db:"updated_at"`
}

type metricRow struct {
	SeriesID       string          `db:"series_id"`
	Date           string          `db:"observation_date"`
	Value          sql.NullFloat64 `db:"value"`
	MoMChange      sql.NullFloat64 `db:"mom_change"`
	YoYChange      sql.NullFloat64 `db:"yoy_change"`
	RollingAvg3    sql.NullFloat64 `db:"rolling_avg_3m"`
	RollingAvg12   sql.NullFloat64 `db:"rolling_avg_12m"`
	ZScore         sql.NullFloat64 `db:"z_score"`
	PercentileRank sql.NullFloat64 `db:"percentile_rank"`
	CreatedAt      string          `db:"created_at"`
	UpdatedAt      string          `db:"updated_at"`
}

// latestRow is a metric row joined with its descriptor
type latestRow struct {
	metricRow
	Title              string         `db:"title"`
	Frequency          string         `db:"frequency"`
	Units              string         `db:"units"`
	SeasonallyAdjusted bool           `db:"seasonally_adjusted"`
	Category           string         `db:"category"`
	LastUpdated        sql.NullString `db:"last_updated"`
}

type runRow struct {
	ID           string `db:"run_id"`
	StartedAt    string `db:"started_at"`
	FinishedAt   string `db:"finished_at"`
	Status       string `db:"status"`
	SeriesTotal  int    `db:"series_total"`
	Succeeded    int    `db:"succeeded"`
	Failed       int    `db:"failed"`
	Rebuild      bool   `db:"rebuild"`
	RegistryHash string `db:"registry_hash"`
	FailedSeries string `db:"failed_series"`
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func toDescriptorRow(d contracts.SeriesDescriptor, now time.Time) descriptorRow {
	updated := d.LastUpdated
	if updated.IsZero() {
		updated = now
	}
	return descriptorRow{
		SeriesID:           d.ID,
		Title:              d.Title,
		Frequency:          string(d.Frequency),
		Units:              d.Units,
		SeasonallyAdjusted: d.SeasonallyAdjusted,
		Category:           d.Category,
		LastUpdated:        sql.NullString{String: formatTime(updated), Valid: true},
	}
}

func (r descriptorRow) descriptor() contracts.SeriesDescriptor {
	d := contracts.SeriesDescriptor{
		ID:                 r.SeriesID,
		Title:              r.Title,
		Frequency:          contracts.Frequency(r.Frequency),
		Units:              r.Units,
		SeasonallyAdjusted: r.SeasonallyAdjusted,
		Category:           r.Category,
	}
	if r.LastUpdated.Valid {
		d.LastUpdated = parseTime(r.LastUpdated.String)
	}
	return d
}

func toObservationRow(o contracts.Observation, now time.Time) observationRow {
	ts := formatTime(now)
	return observationRow{
		SeriesID:  o.SeriesID,
		Date:      contracts.FormatDate(o.Date),
		Value:     nullFloat(o.Value),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (r observationRow) observation() (contracts.Observation, error) {
	date, err := contracts.ParseDate(r.Date)
	if err != nil {
		return contracts.Observation{}, err
	}
	return contracts.Observation{
		SeriesID:  r.SeriesID,
		Date:      date,
		Value:     fromNull(r.Value),
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}, nil
}

func toMetricRow(m contracts.CalculatedMetric, now time.Time) metricRow {
	ts := formatTime(now)
	return metricRow{
		SeriesID:       m.SeriesID,
		Date:           contracts.FormatDate(m.Date),
		Value:          nullFloat(m.Value),
		MoMChange:      nullFloat(m.MoMChange),
		YoYChange:      nullFloat(m.YoYChange),
		RollingAvg3:    nullFloat(m.RollingAvg3),
		RollingAvg12:   nullFloat(m.RollingAvg12),
		ZScore:         nullFloat(m.ZScore),
		PercentileRank: nullFloat(m.PercentileRank),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
}

func (r metricRow) metric() (contracts.CalculatedMetric, error) {
	date, err := contracts.ParseDate(r.Date)
	if err != nil {
		return contracts.CalculatedMetric{}, err
	}
	return contracts.CalculatedMetric{
		SeriesID:       r.SeriesID,
		Date:           date,
		Value:          fromNull(r.Value),
		MoMChange:      fromNull(r.MoMChange),
		YoYChange:      fromNull(r.YoYChange),
		RollingAvg3:    fromNull(r.RollingAvg3),
		RollingAvg12:   fromNull(r.RollingAvg12),
		ZScore:         fromNull(r.ZScore),
		PercentileRank: fromNull(r.PercentileRank),
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}, nil
}
