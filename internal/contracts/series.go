package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of observation dates
const DateLayout = "2006-01-02"

// Frequency is the sampling frequency of a series
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// ParseFrequency accepts the canonical names and the provider's short codes
// ("D", "W", "M", "Q") and long labels ("Weekly, Ending Saturday").
func ParseFrequency(s string) (Frequency, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "d" || strings.HasPrefix(v, "daily"):
		return FrequencyDaily, nil
	case v == "w" || strings.HasPrefix(v, "weekly"):
		return FrequencyWeekly, nil
	case v == "m" || strings.HasPrefix(v, "monthly"):
		return FrequencyMonthly, nil
	case v == "q" || strings.HasPrefix(v, "quarterly"):
		return FrequencyQuarterly, nil
	}
	return "", fmt.Errorf("unsupported frequency %q", s)
}

// AnnualLag is the number of periods between an observation and the same
// point one year earlier. Daily series use 260 business days.
func (f Frequency) AnnualLag() (int, bool) {
	switch f {
	case FrequencyDaily:
		return 260, true
	case FrequencyWeekly:
		return 52, true
	case FrequencyMonthly:
		return 12, true
	case FrequencyQuarterly:
		return 4, true
	}
	return 0, false
}

// Valid reports whether f is one of the supported frequencies
func (f Frequency) Valid() bool {
	_, ok := f.AnnualLag()
	return ok
}

// SeriesDescriptor is the reference data of one indicator
// ⭐ SSOT: persisted in series_metadata, written only by registry refresh
type SeriesDescriptor struct {
	ID                 string    `json:"series_id" yaml:"id" validate:"required,max=64"`
	Title              string    `json:"title" yaml:"title" validate:"required"`
	Frequency          Frequency `json:"frequency" yaml:"frequency" validate:"required,oneof=daily weekly monthly quarterly"`
	Units              string    `json:"units" yaml:"units"`
	SeasonallyAdjusted bool      `json:"seasonally_adjusted" yaml:"seasonally_adjusted"`
	Category           string    `json:"category" yaml:"category" validate:"required"`
	LastUpdated        time.Time `json:"last_updated" yaml:"-"`
}

// Observation is one raw data point. Value is nil when the provider reported
// the period as missing.
type Observation struct {
	SeriesID  string    `json:"series_id"`
	Date      time.Time `json:"observation_date"`
	Value     *float64  `json:"value"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CalculatedMetric holds the derived analytics for one (series, date).
// Every derived field is nil when undefined.
type CalculatedMetric struct {
	SeriesID       string    `json:"series_id"`
	Date           time.Time `json:"observation_date"`
	Value          *float64  `json:"value"`
	MoMChange      *float64  `json:"mom_change"`
	YoYChange      *float64  `json:"yoy_change"`
	RollingAvg3    *float64  `json:"rolling_avg_3m"`
	RollingAvg12   *float64  `json:"rolling_avg_12m"`
	ZScore         *float64  `json:"z_score"`
	PercentileRank *float64  `json:"percentile_rank"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// MetricField names one column of calculated_metrics
type MetricField string

const (
	FieldValue          MetricField = "value"
	FieldMoMChange      MetricField = "mom_change"
	FieldYoYChange      MetricField = "yoy_change"
	FieldRollingAvg3    MetricField = "rolling_avg_3m"
	FieldRollingAvg12   MetricField = "rolling_avg_12m"
	FieldZScore         MetricField = "z_score"
	FieldPercentileRank MetricField = "percentile_rank"
)

// MetricFields lists every field in column order
var MetricFields = []MetricField{
	FieldValue, FieldMoMChange, FieldYoYChange, FieldRollingAvg3,
	FieldRollingAvg12, FieldZScore, FieldPercentileRank,
}

// ParseMetricField validates a field name
func ParseMetricField(s string) (MetricField, error) {
	for _, f := range MetricFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown metric field %q", s)
}

// Field returns the value of the named field
func (m CalculatedMetric) Field(f MetricField) *float64 {
	switch f {
	case FieldValue:
		return m.Value
	case FieldMoMChange:
		return m.MoMChange
	case FieldYoYChange:
		return m.YoYChange
	case FieldRollingAvg3:
		return m.RollingAvg3
	case FieldRollingAvg12:
		return m.RollingAvg12
	case FieldZScore:
		return m.ZScore
	case FieldPercentileRank:
		return m.PercentileRank
	}
	return nil
}

// Values returns the value fields in MetricFields order
func (m CalculatedMetric) Values() []*float64 {
	out := make([]*float64, len(MetricFields))
	for i, f := range MetricFields {
		out[i] = m.Field(f)
	}
	return out
}

// SeriesBatch is everything one series writes in a single transaction
type SeriesBatch struct {
	Descriptor   *SeriesDescriptor
	Observations []Observation
	Metrics      []CalculatedMetric
}

// Bounds limits an observation request. Zero values are open ends.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// IsFinite reports whether v is nil or a finite number
func IsFinite(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0))
}

// FormatDate renders a date in DateLayout
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout date in UTC
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
