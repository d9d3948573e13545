package contracts

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		want    Frequency
		wantErr bool
	}{
		{"monthly", FrequencyMonthly, false},
		{"M", FrequencyMonthly, false},
		{"Quarterly", FrequencyQuarterly, false},
		{"Weekly, Ending Saturday", FrequencyWeekly, false},
		{"W", FrequencyWeekly, false},
		{"Daily", FrequencyDaily, false},
		{"Annual", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrequency_AnnualLag(t *testing.T) {
	tests := []struct {
		freq Frequency
		lag  int
		ok   bool
	}{
		{FrequencyDaily, 260, true},
		{FrequencyWeekly, 52, true},
		{FrequencyMonthly, 12, true},
		{FrequencyQuarterly, 4, true},
		{Frequency("annual"), 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			lag, ok := tt.freq.AnnualLag()
			assert.Equal(t, tt.lag, lag)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, tt.freq.Valid())
		})
	}
}

func TestCalculatedMetric_Field(t *testing.T) {
	m := CalculatedMetric{
		Value:          Float(1),
		MoMChange:      Float(2),
		YoYChange:      Float(3),
		RollingAvg3:    Float(4),
		RollingAvg12:   Float(5),
		ZScore:         Float(6),
		PercentileRank: Float(7),
	}

	for i, v := range m.Values() {
		require.NotNil(t, v)
		assert.Equal(t, float64(i+1), *v, MetricFields[i])
	}

	f, err := ParseMetricField("yoy_change")
	require.NoError(t, err)
	assert.Equal(t, 3.0, *m.Field(f))

	_, err = ParseMetricField("sharpe")
	assert.Error(t, err)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(nil))
	assert.True(t, IsFinite(Float(1.5)))
	assert.False(t, IsFinite(Float(math.NaN())))
	assert.False(t, IsFinite(Float(math.Inf(-1))))
}

func TestCheckFinite(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, CheckFinite("upsert_metrics", "GDP", date, Float(1), nil))

	err := CheckFinite("upsert_metrics", "GDP", date, Float(1), Float(math.Inf(1)))
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "GDP", pe.SeriesID)
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.Contains(t, err.Error(), "2024-01-01")
}

func TestProviderError(t *testing.T) {
	base := errors.New("503 service unavailable")
	err := fmt.Errorf("fetch: %w", &ProviderError{Kind: ProviderTransient, SeriesID: "UNRATE", Op: "observations", Err: base})

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Retryable())
	assert.ErrorIs(t, err, base)
	assert.False(t, IsNotFound(err))

	nf := &ProviderError{Kind: ProviderNotFound, SeriesID: "NOPE", Op: "descriptor", Err: errors.New("bad request")}
	assert.True(t, IsNotFound(nf))
	assert.False(t, nf.Retryable())
	assert.Contains(t, nf.Error(), "not_found")
}

func TestDataQualityError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &DataQualityError{SeriesID: "GDP", Date: "2020-01-01", Raw: "n/a", Reason: "not a number"})
	assert.True(t, IsDataQuality(err))
	assert.False(t, IsDataQuality(errors.New("other")))
}
