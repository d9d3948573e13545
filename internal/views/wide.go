package views

import (
	"sort"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/internal/registry"
)

// WideOptions shapes the pivoted table
type WideOptions struct {
	Since   time.Time // inclusive lower bound, zero means all history
	Monthly bool      // average each column per calendar month
	Fill    bool      // forward-fill columns with FillPeriods > 0
	Require bool      // drop rows missing any Required column
}

// DashboardOptions reproduces the exported dashboard table
func DashboardOptions(since time.Time) WideOptions {
	return WideOptions{Since: since, Monthly: true, Fill: true, Require: true}
}

// WideRow is one date of the pivoted table
type WideRow struct {
	Date   time.Time  `json:"date"`
	Values []*float64 `json:"values"`
}

// WideTable has one row per date and one column per binding
type WideTable struct {
	Columns []string  `json:"columns"`
	Rows    []WideRow `json:"rows"`
}

// Value returns the named cell, or nil
func (t WideTable) Value(row int, column string) *float64 {
	for i, c := range t.Columns {
		if c == column {
			return t.Rows[row].Values[i]
		}
	}
	return nil
}

type cell struct {
	sum float64
	n   int
}

// Pivot lays metrics out by date using the column map. Metrics for series
// without a binding are ignored.
func Pivot(columns registry.ColumnMap, metrics []contracts.CalculatedMetric, opts WideOptions) WideTable {
	table := WideTable{Columns: columns.Names()}

	// one accumulator per (date, column); monthly mode folds dates into the month
	acc := map[time.Time][]cell{}
	for _, m := range metrics {
		if !opts.Since.IsZero() && m.Date.Before(opts.Since) {
			continue
		}
		date := dayStart(m.Date)
		if opts.Monthly {
			date = monthStart(date)
		}
		for i, b := range columns {
			if b.SeriesID != m.SeriesID {
				continue
			}
			cells, ok := acc[date]
			if !ok {
				cells = make([]cell, len(columns))
				acc[date] = cells
			}
			if v := m.Field(b.Field); v != nil {
				cells[i].sum += *v
				cells[i].n++
			}
		}
	}

	dates := make([]time.Time, 0, len(acc))
	for d := range acc {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	raw := make([][]*float64, len(dates))
	for r, d := range dates {
		raw[r] = make([]*float64, len(columns))
		for c, cl := range acc[d] {
			if cl.n > 0 {
				raw[r][c] = contracts.Float(cl.sum / float64(cl.n))
			}
		}
	}

	for r, d := range dates {
		values := make([]*float64, len(columns))
		copy(values, raw[r])
		if opts.Fill {
			for c, b := range columns {
				if values[c] == nil && b.FillPeriods > 0 {
					values[c] = lookBack(raw, r, c, b.FillPeriods)
				}
			}
		}
		if opts.Require && missingRequired(columns, values) {
			continue
		}
		table.Rows = append(table.Rows, WideRow{Date: d, Values: values})
	}

	return table
}

// lookBack finds the nearest unfilled value at most n rows above r
func lookBack(raw [][]*float64, r, c, n int) *float64 {
	for k := 1; k <= n && r-k >= 0; k++ {
		if v := raw[r-k][c]; v != nil {
			return v
		}
	}
	return nil
}

func missingRequired(columns registry.ColumnMap, values []*float64) bool {
	for c, b := range columns {
		if b.Required && values[c] == nil {
			return true
		}
	}
	return false
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// dayStart normalizes map keys to UTC midnight
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
