package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

func TestDefault(t *testing.T) {
	r := Default()

	assert.Equal(t, 13, r.Len())
	assert.Equal(t, []string{
		"GDP", "INDPRO", "UNRATE", "ICSA", "PAYEMS", "CPIAUCSL", "PCEPI",
		"FEDFUNDS", "T10Y2Y", "DGS10", "UMCSENT", "RSXFS", "HOUST",
	}, r.IDs())

	gdp, ok := r.Lookup("GDP")
	require.True(t, ok)
	assert.Equal(t, "Gross Domestic Product", gdp.Title)
	assert.Equal(t, contracts.FrequencyQuarterly, gdp.Frequency)
	assert.Equal(t, CategoryOutput, gdp.Category)

	_, ok = r.Lookup("SP500")
	assert.False(t, ok)

	assert.Equal(t, []string{
		CategoryConsumer, CategoryHousing, CategoryPrices,
		CategoryLabor, CategoryMonetary, CategoryOutput,
	}, r.Categories())
}

func TestDefault_DashboardColumns(t *testing.T) {
	cols, ok := Default().Columns().Select(DashboardColumns...)
	require.True(t, ok)
	assert.Equal(t, DashboardColumns, cols.Names())

	gdp := cols[cols.Index("gdp_growth_yoy")]
	assert.Equal(t, "GDP", gdp.SeriesID)
	assert.Equal(t, contracts.FieldYoYChange, gdp.Field)
	assert.Equal(t, 3, gdp.FillPeriods)

	unrate := cols[cols.Index("unemployment_rate")]
	assert.True(t, unrate.Required)
	assert.Equal(t, contracts.FieldValue, unrate.Field)

	assert.Equal(t, -1, cols.Index("payrolls"))
	assert.Empty(t, cols.ForSeries("PAYEMS"))
	assert.Len(t, cols.ForSeries("ICSA"), 1)
}

func TestColumnMap_SelectUnknown(t *testing.T) {
	_, ok := Default().Columns().Select("unemployment_rate", "nope")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	data := []byte(`
series:
  - id: UNRATE
    title: Unemployment Rate
    frequency: monthly
    units: Percent
    seasonally_adjusted: true
    category: Labor Market
    column:
      name: unemployment_rate
      metric: value
      required: true
  - id: GDPC1
    title: Real GDP
    frequency: quarterly
    category: Output & Growth
    column:
      name: real_gdp_yoy
      metric: yoy_change
      fill: 3
  - id: CPILFESL
    title: Core CPI
    frequency: monthly
    category: Inflation
  - id: T10Y3M
    title: 10Y-3M Spread
    frequency: daily
    category: Monetary Policy
roles:
  gdp: GDPC1
  unemployment: UNRATE
  inflation: CPILFESL
  yield_spread: T10Y3M
`)

	r, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "GDPC1", r.Roles().GDP)
	assert.Equal(t, []string{"unemployment_rate", "real_gdp_yoy"}, r.Columns().Names())
	assert.Equal(t, []string{"UNRATE", "GDPC1"}, r.Columns().SeriesIDs())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown field",
			yaml: "series:\n  - id: GDP\n    title: GDP\n    frequency: quarterly\n    category: Output\n    colour: red\n",
		},
		{
			name: "empty registry",
			yaml: "series: []\n",
		},
		{
			name: "bad frequency",
			yaml: "series:\n  - id: GDP\n    title: GDP\n    frequency: annual\n    category: Output\n",
		},
		{
			name: "missing title",
			yaml: "series:\n  - id: GDP\n    frequency: quarterly\n    category: Output\n",
		},
		{
			name: "bad metric",
			yaml: "series:\n  - id: GDP\n    title: GDP\n    frequency: quarterly\n    category: Output\n    column: {name: gdp, metric: sharpe}\n",
		},
		{
			name: "roles default to missing series",
			yaml: "series:\n  - id: GDPC1\n    title: Real GDP\n    frequency: quarterly\n    category: Output\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestNew_Duplicates(t *testing.T) {
	entries := defaultEntries()
	entries = append(entries, entries[0])
	_, err := New(entries, DefaultRoles)
	assert.ErrorContains(t, err, "duplicate series")

	entries = defaultEntries()
	entries[4].Column = &Column{Name: "unemployment_rate", Field: contracts.FieldValue}
	_, err = New(entries, DefaultRoles)
	assert.ErrorContains(t, err, "column")
}

func TestLoad(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 13, r.Len())

	data, err := Default().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Descriptors(), loaded.Descriptors())
	assert.Equal(t, Default().Hash(), loaded.Hash())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	registered, _ := Default().Lookup("ICSA")
	updated := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	merged := Merge(registered, &contracts.SeriesDescriptor{
		ID:                 "ICSA",
		Title:              "Initial Claims",
		Frequency:          contracts.FrequencyWeekly,
		Units:              "Number",
		SeasonallyAdjusted: true,
		LastUpdated:        updated,
	})

	assert.Equal(t, "Initial Jobless Claims", merged.Title)
	assert.Equal(t, CategoryLabor, merged.Category)
	assert.Equal(t, updated, merged.LastUpdated)

	assert.Equal(t, registered, Merge(registered, nil))
}

func TestHash_ChangesWithContent(t *testing.T) {
	entries := defaultEntries()
	entries[0].Title = "GDP (nominal)"
	other, err := New(entries, DefaultRoles)
	require.NoError(t, err)

	assert.NotEqual(t, Default().Hash(), other.Hash())
	assert.Len(t, other.Hash(), 16)
}
