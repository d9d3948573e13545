package engine

import (
	"math"
	"sort"
)

// rollingMean averages the non-null values among the last w positions
// ending at each index. A window with no values is nil.
func rollingMean(values []*float64, w int) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		start := i - w + 1
		if start < 0 {
			start = 0
		}

		var sum float64
		count := 0
		for _, v := range values[start : i+1] {
			if v != nil {
				sum += *v
				count++
			}
		}
		if count > 0 {
			out[i] = finite(sum / float64(count))
		}
	}
	return out
}

// expandingZScore standardizes each value against the mean and sample
// standard deviation of all non-null values up to and including it.
// Welford's update keeps the running variance stable over long histories.
func expandingZScore(values []*float64) []*float64 {
	out := make([]*float64, len(values))

	var (
		n    int
		mean float64
		m2   float64
	)
	for i, v := range values {
		if v == nil {
			continue
		}

		n++
		delta := *v - mean
		mean += delta / float64(n)
		m2 += delta * (*v - mean)

		if n < 2 {
			continue
		}
		sd := math.Sqrt(m2 / float64(n-1))
		if sd == 0 || math.IsNaN(sd) {
			continue
		}
		out[i] = finite((*v - mean) / sd)
	}
	return out
}

// percentileRank is 100 * |{j <= i : v_j <= v_i}| / n_i over non-null
// values, counted with a Fenwick tree over the sorted distinct values.
func percentileRank(values []*float64) []*float64 {
	distinct := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			distinct = append(distinct, *v)
		}
	}
	sort.Float64s(distinct)
	distinct = dedupe(distinct)

	tree := newFenwick(len(distinct))
	out := make([]*float64, len(values))
	seen := 0
	for i, v := range values {
		if v == nil {
			continue
		}
		rank := sort.SearchFloat64s(distinct, *v) + 1
		tree.add(rank)
		seen++
		out[i] = finite(100 * float64(tree.sum(rank)) / float64(seen))
	}
	return out
}

func dedupe(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

type fenwick []int

func newFenwick(n int) fenwick {
	return make(fenwick, n+1)
}

func (f fenwick) add(i int) {
	for ; i < len(f); i += i & -i {
		f[i]++
	}
}

func (f fenwick) sum(i int) int {
	s := 0
	for ; i > 0; i -= i & -i {
		s += f[i]
	}
	return s
}
