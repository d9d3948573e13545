package views

// Phase is a business-cycle label
type Phase string

const (
	PhaseExpansion        Phase = "expansion"
	PhaseEarlyRecovery    Phase = "early recovery"
	PhaseMidCycle         Phase = "mid cycle"
	PhaseLateCycle        Phase = "late cycle"
	PhaseRecession        Phase = "recession"
	PhaseInsufficientData Phase = "insufficient data"
)

// Indicators are the latest macro readings the classifier looks at.
// Nil means the reading is unavailable.
type Indicators struct {
	GDPYoY       *float64 `json:"gdp_yoy"`
	Unemployment *float64 `json:"unemployment_rate"`
	InflationYoY *float64 `json:"inflation_yoy"`
	Spread       *float64 `json:"yield_spread"`
}

// Rule labels the indicators when Match holds
type Rule struct {
	Label Phase
	Match func(Indicators) bool
}

// CycleRules are evaluated top-down; the first match wins.
// A predicate over an unavailable optional reading does not hold.
var CycleRules = []Rule{
	{PhaseRecession, func(in Indicators) bool {
		return *in.GDPYoY < 0
	}},
	{PhaseEarlyRecovery, func(in Indicators) bool {
		return *in.GDPYoY < 2 && *in.Unemployment >= 6
	}},
	{PhaseLateCycle, func(in Indicators) bool {
		return (in.InflationYoY != nil && *in.InflationYoY > 3.5) ||
			(in.Spread != nil && *in.Spread < 0 && *in.Unemployment < 5)
	}},
	{PhaseExpansion, func(in Indicators) bool {
		return *in.GDPYoY >= 2 && *in.Unemployment < 5 &&
			in.InflationYoY != nil && *in.InflationYoY <= 3.5
	}},
	{PhaseMidCycle, func(Indicators) bool { return true }},
}

// Classify applies CycleRules. GDP growth and unemployment are mandatory.
func Classify(in Indicators) Phase {
	return ClassifyWith(CycleRules, in)
}

// ClassifyWith applies an explicit rule list
func ClassifyWith(rules []Rule, in Indicators) Phase {
	if in.GDPYoY == nil || in.Unemployment == nil {
		return PhaseInsufficientData
	}
	for _, r := range rules {
		if r.Match(in) {
			return r.Label
		}
	}
	return PhaseInsufficientData
}
