package backtest

import (
	"time"
)

// monthEnds returns n consecutive month-ends starting with the month of start.
func monthEnds(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	d := MonthEnd(start)
	for i := range out {
		out[i] = d
		d = time.Date(d.Year(), d.Month()+2, 0, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seriesOf builds an aligned series starting at 2020-01-31 with one return
// slice per instrument.
func seriesOf(returns ...[]float64) *AlignedSeries {
	periods := len(returns[0])
	names := make([]string, len(returns))
	codes := make([]string, len(returns))
	for i := range returns {
		names[i] = string(rune('A' + i))
		codes[i] = "idx_" + names[i]
	}
	return &AlignedSeries{
		Dates:    monthEnds(date(2020, time.January, 1), periods+1),
		Names:    names,
		Codes:    codes,
		Currency: "EUR",
		Returns:  returns,
	}
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// trajectoryOf builds a trajectory without contributions from raw values.
func trajectoryOf(values ...float64) *Trajectory {
	dates := monthEnds(date(2020, time.January, 1), len(values))
	points := make([]EvolutionPoint, len(values))
	for i, v := range values {
		points[i] = EvolutionPoint{Date: dates[i], Value: v}
	}
	return &Trajectory{Points: points, AmountInvested: values[0]}
}

// pricesFrom turns returns into month-end observations starting at 100.
func pricesFrom(start time.Time, returns []float64) []Observation {
	dates := monthEnds(start, len(returns)+1)
	obs := make([]Observation, len(dates))
	p := 100.0
	for i, d := range dates {
		if i > 0 {
			p *= 1 + returns[i-1]
		}
		obs[i] = Observation{Date: d, Close: p}
	}
	return obs
}
