package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

var start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// monthly builds a monthly history; nil entries are missing observations
func monthly(id string, values ...*float64) []contracts.Observation {
	obs := make([]contracts.Observation, len(values))
	for i, v := range values {
		obs[i] = contracts.Observation{SeriesID: id, Date: start.AddDate(0, i, 0), Value: v}
	}
	return obs
}

func floats(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = contracts.Float(v)
	}
	return out
}

func f(v float64) *float64 { return contracts.Float(v) }

func requireValue(t *testing.T, want float64, got *float64, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	assert.InDelta(t, want, *got, 1e-9, msgAndArgs...)
}

func TestCompute_MonthOverMonthWithGap(t *testing.T) {
	rows, err := Compute("RSXFS", contracts.FrequencyMonthly, monthly("RSXFS", f(100), f(105), nil, f(110.25)))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Nil(t, rows[0].MoMChange, "first period has no predecessor")
	requireValue(t, 5.0, rows[1].MoMChange)
	assert.Nil(t, rows[2].MoMChange, "missing value")
	assert.Nil(t, rows[3].MoMChange, "predecessor missing")

	assert.Nil(t, rows[2].Value)
	requireValue(t, 110.25, rows[3].Value)
}

func TestCompute_YearOverYearMonthly(t *testing.T) {
	values := make([]*float64, 26)
	for i := range values {
		values[i] = f(100 + float64(i)*2)
	}
	values[3] = nil
	values[20] = nil
	values[9] = f(0)

	rows, err := Compute("CPIAUCSL", contracts.FrequencyMonthly, monthly("CPIAUCSL", values...))
	require.NoError(t, err)

	for i, row := range rows {
		if i < 12 {
			assert.Nil(t, row.YoYChange, "index %d has no year-ago period", i)
			continue
		}
		cur, base := values[i], values[i-12]
		if cur == nil || base == nil || *base == 0 {
			assert.Nil(t, row.YoYChange, "index %d", i)
			continue
		}
		requireValue(t, (*cur-*base) / *base * 100, row.YoYChange, "index %d", i)
	}

	assert.Nil(t, rows[15].YoYChange)
	assert.Nil(t, rows[20].YoYChange)
	assert.Nil(t, rows[21].YoYChange)
	requireValue(t, (100.0+24*2-(100+12*2))/(100+12*2)*100, rows[24].YoYChange)
}

func TestCompute_YearOverYearQuarterly(t *testing.T) {
	obs := make([]contracts.Observation, 6)
	for i := range obs {
		obs[i] = contracts.Observation{SeriesID: "GDP", Date: start.AddDate(0, 3*i, 0), Value: f(float64(1000 + 10*i))}
	}

	rows, err := Compute("GDP", contracts.FrequencyQuarterly, obs)
	require.NoError(t, err)

	assert.Nil(t, rows[3].YoYChange)
	requireValue(t, 4.0, rows[4].YoYChange) // 1040 vs 1000
	requireValue(t, (1050.0-1010)/1010*100, rows[5].YoYChange)
}

func TestCompute_RollingAverages(t *testing.T) {
	rows, err := Compute("UNRATE", contracts.FrequencyMonthly, monthly("UNRATE", f(1), nil, f(3), nil, nil, nil, f(8)))
	require.NoError(t, err)

	requireValue(t, 1, rows[0].RollingAvg3)
	requireValue(t, 1, rows[1].RollingAvg3)
	requireValue(t, 2, rows[2].RollingAvg3)
	requireValue(t, 3, rows[3].RollingAvg3)
	requireValue(t, 3, rows[4].RollingAvg3)
	assert.Nil(t, rows[5].RollingAvg3, "window holds no values")
	requireValue(t, 8, rows[6].RollingAvg3)

	requireValue(t, 4, rows[6].RollingAvg12) // (1+3+8)/3
}

func TestCompute_RollingLongWindowDropsOldValues(t *testing.T) {
	values := make([]*float64, 13)
	for i := range values {
		values[i] = f(float64(i + 1))
	}

	rows, err := Compute("INDPRO", contracts.FrequencyMonthly, monthly("INDPRO", values...))
	require.NoError(t, err)

	requireValue(t, 6.5, rows[11].RollingAvg12) // mean 1..12
	requireValue(t, 7.5, rows[12].RollingAvg12) // mean 2..13
	requireValue(t, 12, rows[12].RollingAvg3)
}

func TestCompute_ZScoreExpandingWindow(t *testing.T) {
	rows, err := Compute("FEDFUNDS", contracts.FrequencyMonthly, monthly("FEDFUNDS", f(1), f(2), nil, f(3)))
	require.NoError(t, err)

	assert.Nil(t, rows[0].ZScore, "fewer than two values")
	requireValue(t, 0.5/math.Sqrt(0.5), rows[1].ZScore)
	assert.Nil(t, rows[2].ZScore, "missing value")
	requireValue(t, 1.0, rows[3].ZScore) // mean 2, sd 1
}

func TestCompute_ZScoreZeroVariance(t *testing.T) {
	rows, err := Compute("DGS10", contracts.FrequencyDaily, monthly("DGS10", floats(4, 4, 4, 4)...))
	require.NoError(t, err)

	for i, row := range rows {
		assert.Nil(t, row.ZScore, "index %d", i)
		if i > 0 {
			requireValue(t, 0, row.MoMChange)
		}
	}
}

func TestCompute_PercentileRank(t *testing.T) {
	t.Run("ascending history is always at the maximum", func(t *testing.T) {
		rows, err := Compute("PAYEMS", contracts.FrequencyMonthly, monthly("PAYEMS", floats(1, 2, 3, 4, 5)...))
		require.NoError(t, err)
		for _, row := range rows {
			requireValue(t, 100, row.PercentileRank)
		}
	})

	t.Run("descending history", func(t *testing.T) {
		rows, err := Compute("PAYEMS", contracts.FrequencyMonthly, monthly("PAYEMS", floats(5, 4, 3, 2)...))
		require.NoError(t, err)
		for i, row := range rows {
			requireValue(t, 100/float64(i+1), row.PercentileRank)
		}
	})

	t.Run("ties and gaps", func(t *testing.T) {
		rows, err := Compute("HOUST", contracts.FrequencyMonthly, monthly("HOUST", f(2), nil, f(1), f(2), f(3)))
		require.NoError(t, err)
		requireValue(t, 100, rows[0].PercentileRank)
		assert.Nil(t, rows[1].PercentileRank)
		requireValue(t, 50, rows[2].PercentileRank)
		requireValue(t, 100, rows[3].PercentileRank) // 1,2,2 all <= 2
		requireValue(t, 100, rows[4].PercentileRank)
	})

	t.Run("monotonic in value order", func(t *testing.T) {
		values := floats(7, 3, 9, 1, 5, 5, 8, 2, 6, 4)
		rows, err := Compute("ICSA", contracts.FrequencyWeekly, monthly("ICSA", values...))
		require.NoError(t, err)

		// against the full history the last rank orders like the values
		last := rows[len(rows)-1]
		requireValue(t, 40, last.PercentileRank) // 1,2,3,4 <= 4

		for i := 1; i < len(values); i++ {
			count := 0
			for j := 0; j <= i; j++ {
				if *values[j] <= *values[i] {
					count++
				}
			}
			requireValue(t, 100*float64(count)/float64(i+1), rows[i].PercentileRank, "index %d", i)
		}

		// a larger final value never ranks lower on the same prefix
		prev := -1.0
		for _, x := range []float64{0, 1, 2.5, 5, 5.5, 8, 10} {
			hist := append(floats(7, 3, 9, 1, 5), f(x))
			rows, err := Compute("ICSA", contracts.FrequencyWeekly, monthly("ICSA", hist...))
			require.NoError(t, err)
			rank := *rows[len(rows)-1].PercentileRank
			assert.GreaterOrEqual(t, rank, prev, "value %v", x)
			prev = rank
		}
		assert.Equal(t, 100.0, prev, "historical maximum")
	})
}

func TestCompute_ShortHistories(t *testing.T) {
	rows, err := Compute("GDP", contracts.FrequencyQuarterly, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = Compute("GDP", contracts.FrequencyQuarterly, monthly("GDP", f(21000)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	requireValue(t, 21000, rows[0].Value)
	for _, field := range contracts.MetricFields[1:] {
		assert.Nil(t, rows[0].Field(field), field)
	}
}

func TestCompute_ZeroDenominator(t *testing.T) {
	rows, err := Compute("T10Y2Y", contracts.FrequencyDaily, monthly("T10Y2Y", floats(0.5, 0, -0.25, 0)...))
	require.NoError(t, err)

	requireValue(t, -100, rows[1].MoMChange)
	assert.Nil(t, rows[2].MoMChange, "zero base")
	requireValue(t, -100, rows[3].MoMChange)
}

func TestCompute_NeverProducesNonFinite(t *testing.T) {
	values := floats(1e308, -1e308, 1e308, -1e308, 5e-324, 1e308)
	rows, err := Compute("X", contracts.FrequencyMonthly, monthly("X", values...))
	require.NoError(t, err)

	for i, row := range rows {
		for _, v := range row.Values() {
			assert.True(t, contracts.IsFinite(v), "index %d", i)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	values := make([]*float64, 300)
	for i := range values {
		if i%17 == 5 {
			continue
		}
		values[i] = f(math.Sin(float64(i)/7)*50 + float64(i)/3)
	}
	obs := monthly("UMCSENT", values...)

	first, err := Compute("UMCSENT", contracts.FrequencyMonthly, obs)
	require.NoError(t, err)
	second, err := Compute("UMCSENT", contracts.FrequencyMonthly, obs)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("recomputation differs (-first +second):\n%s", diff)
	}
}

func TestCompute_DoesNotAliasInput(t *testing.T) {
	obs := monthly("PCEPI", floats(1, 2)...)
	rows, err := Compute("PCEPI", contracts.FrequencyMonthly, obs)
	require.NoError(t, err)

	*rows[0].Value = 99
	assert.Equal(t, 1.0, *obs[0].Value)
}

func TestCompute_MalformedInput(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name string
		freq contracts.Frequency
		obs  []contracts.Observation
	}{
		{
			name: "unsupported frequency",
			freq: contracts.Frequency("annual"),
			obs:  monthly("GDP", f(1)),
		},
		{
			name: "foreign series",
			freq: contracts.FrequencyMonthly,
			obs:  append(monthly("GDP", f(1)), contracts.Observation{SeriesID: "UNRATE", Date: start.AddDate(0, 1, 0), Value: f(2)}),
		},
		{
			name: "duplicate date",
			freq: contracts.FrequencyMonthly,
			obs:  append(monthly("GDP", f(1)), contracts.Observation{SeriesID: "GDP", Date: start, Value: f(2)}),
		},
		{
			name: "descending dates",
			freq: contracts.FrequencyMonthly,
			obs:  append(monthly("GDP", f(1), f(2)), contracts.Observation{SeriesID: "GDP", Date: start, Value: f(3)}),
		},
		{
			name: "non-finite value",
			freq: contracts.FrequencyMonthly,
			obs:  monthly("GDP", f(1), &nan),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Compute("GDP", tt.freq, tt.obs)
			assert.Nil(t, rows)

			var inputErr *contracts.ComputationInputError
			require.True(t, errors.As(err, &inputErr), "got %v", err)
			assert.Equal(t, "GDP", inputErr.SeriesID)
		})
	}
}
