// Package registry holds the set of indicators the pipeline tracks, how they
// map onto dashboard columns and which series feed the macro views.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// Column places one series' metric into the wide dashboard table
type Column struct {
	Name        string                `json:"name" yaml:"name" validate:"required"`
	Field       contracts.MetricField `json:"metric" yaml:"metric" validate:"required,oneof=value mom_change yoy_change rolling_avg_3m rolling_avg_12m z_score percentile_rank"`
	FillPeriods int                   `json:"fill,omitempty" yaml:"fill,omitempty" validate:"gte=0,lte=24"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
}

// Entry is one tracked indicator
type Entry struct {
	contracts.SeriesDescriptor `yaml:",inline"`
	Column                     *Column `json:"column,omitempty" yaml:"column,omitempty"`
}

// Roles names the series the cycle-phase and yield-curve views read
type Roles struct {
	GDP          string `json:"gdp" yaml:"gdp" validate:"required"`
	Unemployment string `json:"unemployment" yaml:"unemployment" validate:"required"`
	Inflation    string `json:"inflation" yaml:"inflation" validate:"required"`
	YieldSpread  string `json:"yield_spread" yaml:"yield_spread" validate:"required"`
}

// Registry is the validated, immutable set of tracked series
// ⭐ SSOT: the list of indicators lives here only
type Registry struct {
	entries []Entry
	byID    map[string]int
	columns ColumnMap
	roles   Roles
}

// New validates entries and builds the column map
func New(entries []Entry, roles Roles) (*Registry, error) {
	if err := validateEntries(entries, roles); err != nil {
		return nil, err
	}

	r := &Registry{
		entries: append([]Entry(nil), entries...),
		byID:    make(map[string]int, len(entries)),
		roles:   roles,
	}
	for i, e := range r.entries {
		r.byID[e.ID] = i
		if e.Column != nil {
			r.columns = append(r.columns, ColumnBinding{SeriesID: e.ID, Column: *e.Column})
		}
	}

	return r, nil
}

// Default returns the built-in 13-indicator registry
func Default() *Registry {
	r, err := New(defaultEntries(), DefaultRoles)
	if err != nil {
		panic(fmt.Sprintf("built-in registry is invalid: %v", err))
	}
	return r
}

// Descriptors returns the descriptors in registry order
func (r *Registry) Descriptors() []contracts.SeriesDescriptor {
	out := make([]contracts.SeriesDescriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.SeriesDescriptor
	}
	return out
}

// IDs returns the series identifiers in registry order
func (r *Registry) IDs() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.ID
	}
	return out
}

// Lookup returns the registered descriptor for id
func (r *Registry) Lookup(id string) (contracts.SeriesDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return contracts.SeriesDescriptor{}, false
	}
	return r.entries[i].SeriesDescriptor, true
}

// Columns returns the wide-table column map
func (r *Registry) Columns() ColumnMap {
	return r.columns
}

// Roles returns the series feeding the macro views
func (r *Registry) Roles() Roles {
	return r.roles
}

// Len returns the number of tracked series
func (r *Registry) Len() int {
	return len(r.entries)
}

// Categories returns the distinct categories, sorted
func (r *Registry) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range r.entries {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Hash fingerprints the registry content for the run audit.
// Structs (not maps) keep the JSON encoding stable.
func (r *Registry) Hash() string {
	data, err := json.Marshal(struct {
		Entries []Entry `json:"entries"`
		Roles   Roles   `json:"roles"`
	}{r.entries, r.roles})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Merge overlays provider metadata on the registered descriptor. Registry
// title and category win; frequency, units and seasonal adjustment come from
// the provider when it reports them.
func Merge(registered contracts.SeriesDescriptor, provider *contracts.SeriesDescriptor) contracts.SeriesDescriptor {
	out := registered
	if provider == nil {
		return out
	}
	if provider.Frequency.Valid() {
		out.Frequency = provider.Frequency
	}
	if provider.Units != "" {
		out.Units = provider.Units
	}
	out.SeasonallyAdjusted = provider.SeasonallyAdjusted
	if out.Title == "" {
		out.Title = provider.Title
	}
	out.LastUpdated = provider.LastUpdated
	return out
}
