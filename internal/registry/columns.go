package registry

import "github.com/RuizOsvaldo/economic-dashboard/internal/contracts"

// ColumnBinding ties a column to its source series
type ColumnBinding struct {
	SeriesID string `json:"series_id"`
	Column
}

// ColumnMap is the ordered series -> column mapping of the wide table
type ColumnMap []ColumnBinding

// Names returns the column names in order
func (m ColumnMap) Names() []string {
	out := make([]string, len(m))
	for i, b := range m {
		out[i] = b.Name
	}
	return out
}

// SeriesIDs returns the source series in column order
func (m ColumnMap) SeriesIDs() []string {
	out := make([]string, len(m))
	for i, b := range m {
		out[i] = b.SeriesID
	}
	return out
}

// Index returns the position of the named column, or -1
func (m ColumnMap) Index(name string) int {
	for i, b := range m {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// ForSeries returns the bindings fed by one series
func (m ColumnMap) ForSeries(id string) []ColumnBinding {
	var out []ColumnBinding
	for _, b := range m {
		if b.SeriesID == id {
			out = append(out, b)
		}
	}
	return out
}

// Select keeps only the named columns, in the given order
func (m ColumnMap) Select(names ...string) (ColumnMap, bool) {
	out := make(ColumnMap, 0, len(names))
	for _, n := range names {
		i := m.Index(n)
		if i < 0 {
			return nil, false
		}
		out = append(out, m[i])
	}
	return out, true
}

// Single builds a one-column map for ad-hoc queries
func Single(seriesID string, field contracts.MetricField) ColumnMap {
	return ColumnMap{{SeriesID: seriesID, Column: Column{Name: seriesID, Field: field}}}
}
