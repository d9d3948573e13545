// Package engine derives analytics from the ascending observation history of
// one series. It performs no I/O and takes no configuration.
package engine

import (
	"fmt"
	"math"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// Rolling window sizes, in periods of the series' own frequency
const (
	ShortWindow = 3
	LongWindow  = 12
)

// Compute returns one CalculatedMetric per observation, in input order.
// ⭐ SSOT: every derived metric is calculated here only
//
// Undefined results (missing operand, zero denominator, too little history)
// are nil. A malformed history returns *contracts.ComputationInputError.
func Compute(seriesID string, freq contracts.Frequency, observations []contracts.Observation) ([]contracts.CalculatedMetric, error) {
	lag, err := validate(seriesID, freq, observations)
	if err != nil {
		return nil, err
	}

	n := len(observations)
	out := make([]contracts.CalculatedMetric, n)
	values := make([]*float64, n)
	for i, o := range observations {
		values[i] = o.Value
		out[i] = contracts.CalculatedMetric{
			SeriesID: seriesID,
			Date:     o.Date,
			Value:    copyFloat(o.Value),
		}
	}

	if n < 2 {
		return out, nil
	}

	short := rollingMean(values, ShortWindow)
	long := rollingMean(values, LongWindow)
	z := expandingZScore(values)
	pct := percentileRank(values)

	for i := range out {
		if i >= 1 {
			out[i].MoMChange = pctChange(values[i], values[i-1])
		}
		if i >= lag {
			out[i].YoYChange = pctChange(values[i], values[i-lag])
		}
		out[i].RollingAvg3 = short[i]
		out[i].RollingAvg12 = long[i]
		out[i].ZScore = z[i]
		out[i].PercentileRank = pct[i]
	}

	return out, nil
}

func validate(seriesID string, freq contracts.Frequency, observations []contracts.Observation) (int, error) {
	lag, ok := freq.AnnualLag()
	if !ok {
		return 0, &contracts.ComputationInputError{
			SeriesID: seriesID,
			Index:    -1,
			Reason:   fmt.Sprintf("unsupported frequency %q", freq),
		}
	}

	for i, o := range observations {
		if o.SeriesID != seriesID {
			return 0, &contracts.ComputationInputError{
				SeriesID: seriesID,
				Index:    i,
				Reason:   fmt.Sprintf("observation belongs to series %q", o.SeriesID),
			}
		}
		if !contracts.IsFinite(o.Value) {
			return 0, &contracts.ComputationInputError{
				SeriesID: seriesID,
				Index:    i,
				Reason:   "non-finite value",
			}
		}
		if i > 0 && !o.Date.After(observations[i-1].Date) {
			return 0, &contracts.ComputationInputError{
				SeriesID: seriesID,
				Index:    i,
				Reason: fmt.Sprintf("date %s not after %s",
					contracts.FormatDate(o.Date), contracts.FormatDate(observations[i-1].Date)),
			}
		}
	}

	return lag, nil
}

// pctChange is (cur - prev) / prev * 100, nil on a missing operand or zero base
func pctChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	return finite((*cur - *prev) / *prev * 100)
}

// finite returns nil for NaN and Inf
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
