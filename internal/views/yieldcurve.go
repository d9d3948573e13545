package views

// CurveSignal is the recession signal read off the 10y-2y spread
type CurveSignal string

const (
	CurveInverted         CurveSignal = "inverted"
	CurveFlatWarning      CurveSignal = "flat-warning"
	CurveNormal           CurveSignal = "normal"
	CurveSteep            CurveSignal = "steep"
	CurveInsufficientData CurveSignal = "insufficient data"
)

type band struct {
	signal CurveSignal
	match  func(spread float64, avg *float64) bool
}

// curveBands are evaluated top-down; avg is the 3-period rolling average
var curveBands = []band{
	{CurveInverted, func(s float64, avg *float64) bool {
		return s < 0 || (s <= 0 && avg != nil && *avg <= 0)
	}},
	{CurveFlatWarning, func(s float64, avg *float64) bool {
		return s < 0.5 || (avg != nil && *avg < 0)
	}},
	{CurveNormal, func(s float64, _ *float64) bool {
		return s < 1.5
	}},
	{CurveSteep, func(float64, *float64) bool { return true }},
}

// YieldCurveSignal classifies the latest spread
func YieldCurveSignal(spread, avg *float64) CurveSignal {
	if spread == nil {
		return CurveInsufficientData
	}
	for _, b := range curveBands {
		if b.match(*spread, avg) {
			return b.signal
		}
	}
	return CurveInsufficientData
}
