package registry

import "github.com/RuizOsvaldo/economic-dashboard/internal/contracts"

// DefaultRoles points the macro views at the built-in series
var DefaultRoles = Roles{
	GDP:          "GDP",
	Unemployment: "UNRATE",
	Inflation:    "CPIAUCSL",
	YieldSpread:  "T10Y2Y",
}

// Category labels
const (
	CategoryOutput   = "Output & Growth"
	CategoryLabor    = "Labor Market"
	CategoryPrices   = "Inflation"
	CategoryMonetary = "Monetary Policy"
	CategoryConsumer = "Consumer"
	CategoryHousing  = "Housing"
)

func entry(id, title string, freq contracts.Frequency, units string, sa bool, category string, col *Column) Entry {
	return Entry{
		SeriesDescriptor: contracts.SeriesDescriptor{
			ID:                 id,
			Title:              title,
			Frequency:          freq,
			Units:              units,
			SeasonallyAdjusted: sa,
			Category:           category,
		},
		Column: col,
	}
}

func defaultEntries() []Entry {
	m, q, w, d := contracts.FrequencyMonthly, contracts.FrequencyQuarterly, contracts.FrequencyWeekly, contracts.FrequencyDaily
	return []Entry{
		entry("GDP", "Gross Domestic Product", q, "Billions of Dollars", true, CategoryOutput,
			&Column{Name: "gdp_growth_yoy", Field: contracts.FieldYoYChange, FillPeriods: 3}),
		entry("INDPRO", "Industrial Production Index", m, "Index 2017=100", true, CategoryOutput,
			&Column{Name: "industrial_prod_yoy", Field: contracts.FieldYoYChange}),

		entry("UNRATE", "Unemployment Rate", m, "Percent", true, CategoryLabor,
			&Column{Name: "unemployment_rate", Field: contracts.FieldValue, Required: true}),
		entry("ICSA", "Initial Jobless Claims", w, "Number", true, CategoryLabor,
			&Column{Name: "jobless_claims", Field: contracts.FieldValue}),
		entry("PAYEMS", "Total Nonfarm Payrolls", m, "Thousands of Persons", true, CategoryLabor, nil),

		entry("CPIAUCSL", "Consumer Price Index", m, "Index 1982-1984=100", true, CategoryPrices,
			&Column{Name: "inflation_yoy", Field: contracts.FieldYoYChange}),
		entry("PCEPI", "PCE Price Index", m, "Index 2017=100", true, CategoryPrices, nil),

		entry("FEDFUNDS", "Federal Funds Rate", m, "Percent", false, CategoryMonetary,
			&Column{Name: "fed_funds_rate", Field: contracts.FieldValue}),
		entry("T10Y2Y", "10Y-2Y Treasury Spread", d, "Percent", false, CategoryMonetary,
			&Column{Name: "yield_curve_spread", Field: contracts.FieldValue}),
		entry("DGS10", "10-Year Treasury Rate", d, "Percent", false, CategoryMonetary, nil),

		entry("UMCSENT", "Consumer Sentiment Index", m, "Index 1966:Q1=100", false, CategoryConsumer,
			&Column{Name: "consumer_sentiment", Field: contracts.FieldValue}),
		entry("RSXFS", "Retail Sales", m, "Millions of Dollars", true, CategoryConsumer,
			&Column{Name: "retail_sales_yoy", Field: contracts.FieldYoYChange}),

		entry("HOUST", "Housing Starts", m, "Thousands of Units", true, CategoryHousing,
			&Column{Name: "housing_starts", Field: contracts.FieldValue}),
	}
}

// DashboardColumns is the export column order
var DashboardColumns = []string{
	"gdp_growth_yoy",
	"unemployment_rate",
	"inflation_yoy",
	"fed_funds_rate",
	"consumer_sentiment",
	"housing_starts",
	"retail_sales_yoy",
	"industrial_prod_yoy",
	"yield_curve_spread",
	"jobless_claims",
}
