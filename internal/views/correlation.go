package views

import (
	"math"
	"sort"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// MinCorrelationPairs is the fewest aligned pairs a coefficient is reported for
const MinCorrelationPairs = 3

// Correlation is the Pearson coefficient between two series' metric
type Correlation struct {
	SeriesA     string                `json:"series_a"`
	SeriesB     string                `json:"series_b"`
	Metric      contracts.MetricField `json:"metric"`
	Monthly     bool                  `json:"monthly"`
	Pairs       int                   `json:"pairs"`
	Coefficient *float64              `json:"coefficient"`
}

// Correlate aligns a and b by date (or calendar month) and correlates the
// pairwise-complete values
func Correlate(a, b []contracts.CalculatedMetric, field contracts.MetricField, monthly bool) Correlation {
	out := Correlation{Metric: field, Monthly: monthly}
	if len(a) > 0 {
		out.SeriesA = a[0].SeriesID
	}
	if len(b) > 0 {
		out.SeriesB = b[0].SeriesID
	}

	xa := bucket(a, field, monthly)
	xb := bucket(b, field, monthly)

	keys := make([]time.Time, 0, len(xa))
	for k := range xa {
		if _, ok := xb[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	xs := make([]float64, len(keys))
	ys := make([]float64, len(keys))
	for i, k := range keys {
		xs[i], ys[i] = xa[k], xb[k]
	}

	out.Pairs = len(keys)
	out.Coefficient = Pearson(xs, ys)
	return out
}

// bucket averages the non-null field values per key
func bucket(metrics []contracts.CalculatedMetric, field contracts.MetricField, monthly bool) map[time.Time]float64 {
	sums := map[time.Time]cell{}
	for _, m := range metrics {
		v := m.Field(field)
		if v == nil {
			continue
		}
		k := dayStart(m.Date)
		if monthly {
			k = monthStart(k)
		}
		c := sums[k]
		c.sum += *v
		c.n++
		sums[k] = c
	}

	out := make(map[time.Time]float64, len(sums))
	for k, c := range sums {
		out[k] = c.sum / float64(c.n)
	}
	return out
}

// Pearson returns the sample correlation of xs and ys, or nil when there are
// fewer than MinCorrelationPairs pairs or either side has no variance
func Pearson(xs, ys []float64) *float64 {
	n := len(xs)
	if n != len(ys) || n < MinCorrelationPairs {
		return nil
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}

	r := sxy / math.Sqrt(sxx*syy)
	// rounding can push a perfect fit just past the bounds
	r = math.Max(-1, math.Min(1, r))
	if math.IsNaN(r) {
		return nil
	}
	return &r
}
