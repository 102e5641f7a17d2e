package backtest

import (
	"math"
	"strings"
	"time"
)

// Strategy is a rebalancing policy. The set of strategies is closed; use
// ParseStrategy to convert user input.
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyMonthly     Strategy = "monthly"
	StrategyQuarterly   Strategy = "quarterly"
	StrategyHalfYearly  Strategy = "half-yearly"
	StrategyYearly      Strategy = "yearly"
	StrategyEvery2Years Strategy = "every-2-years"
	StrategyEvery3Years Strategy = "every-3-years"
	StrategyThreshold   Strategy = "threshold"
	StrategyTolerance5  Strategy = "tolerance-5"
	StrategyTolerance10 Strategy = "tolerance-10"
	StrategyTolerance15 Strategy = "tolerance-15"
	StrategyTolerance20 Strategy = "tolerance-20"
)

var strategyLabels = map[Strategy]string{
	StrategyNone:        "No rebalancing",
	StrategyMonthly:     "Monthly",
	StrategyQuarterly:   "Quarterly",
	StrategyHalfYearly:  "Every 6 months",
	StrategyYearly:      "Yearly",
	StrategyEvery2Years: "Every 2 years",
	StrategyEvery3Years: "Every 3 years",
	StrategyThreshold:   "Threshold (5 pp band)",
	StrategyTolerance5:  "Tolerance band 5 pp",
	StrategyTolerance10: "Tolerance band 10 pp",
	StrategyTolerance15: "Tolerance band 15 pp",
	StrategyTolerance20: "Tolerance band 20 pp",
}

// thresholdBands holds the allowed absolute weight drift for band strategies.
var thresholdBands = map[Strategy]float64{
	StrategyThreshold:   0.05,
	StrategyTolerance5:  0.05,
	StrategyTolerance10: 0.10,
	StrategyTolerance15: 0.15,
	StrategyTolerance20: 0.20,
}

// ParseStrategy converts raw user input to a Strategy. Unknown values are an
// InputValidationError.
func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", invalidField("rebalancingStrategy", "unknown rebalancing strategy: "+raw)
	}
	return s, nil
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	_, ok := strategyLabels[s]
	return ok
}

// Label returns a human readable name.
func (s Strategy) Label() string {
	if l, ok := strategyLabels[s]; ok {
		return l
	}
	return string(s)
}

// DefaultComparisonStrategies is the list compared when the caller does not
// supply one.
func DefaultComparisonStrategies() []Strategy {
	return []Strategy{
		StrategyNone,
		StrategyMonthly,
		StrategyQuarterly,
		StrategyHalfYearly,
		StrategyYearly,
		StrategyEvery2Years,
		StrategyEvery3Years,
		StrategyThreshold,
	}
}

// AllStrategies lists every supported strategy.
func AllStrategies() []Strategy {
	return append(DefaultComparisonStrategies(),
		StrategyTolerance5,
		StrategyTolerance10,
		StrategyTolerance15,
		StrategyTolerance20,
	)
}

// calendarDue reports whether a calendar strategy rebalances at month-end d.
func (s Strategy) calendarDue(d time.Time) bool {
	m := d.Month()
	switch s {
	case StrategyMonthly:
		return true
	case StrategyQuarterly:
		return m%3 == 0
	case StrategyHalfYearly:
		return m == time.June || m == time.December
	case StrategyYearly:
		return m == time.December
	case StrategyEvery2Years:
		return m == time.December && d.Year()%2 == 0
	case StrategyEvery3Years:
		return m == time.December && d.Year()%3 == 0
	}
	return false
}

// rebalanceDue reports whether holdings must be reset to target at d.
func (s Strategy) rebalanceDue(d time.Time, holdings, target []float64, total float64) bool {
	if band, ok := thresholdBands[s]; ok {
		if total <= 0 {
			return false
		}
		for j, h := range holdings {
			if math.Abs(h/total-target[j]) > band {
				return true
			}
		}
		return false
	}
	return s.calendarDue(d)
}
