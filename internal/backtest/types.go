// Package backtest implements the portfolio backtesting engine: month-end
// normalization of instrument price series into a display currency, portfolio
// evolution under a rebalancing strategy, risk and return analytics, strategy
// comparison, Monte Carlo projection and return correlation.
//
// Functions in this package never mutate their inputs and keep no state
// between calls, so independent analyses can run concurrently over the same
// AlignedSeries.
package backtest

import (
	"fmt"
	"strings"
	"time"
)

// Observation is a single close price of an instrument in its native currency.
type Observation struct {
	Date  time.Time
	Close float64
}

// Instrument is a price history identified by index code and ISIN.
type Instrument struct {
	Code         string
	ISIN         string
	Name         string
	Currency     string
	Observations []Observation
}

// DisplayName returns the name used in results and error messages.
func (i Instrument) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.ISIN != "":
		return i.ISIN
	default:
		return i.Code
	}
}

// FXRate is the number of units of the quote currency per unit of the base
// currency on a given date.
type FXRate struct {
	Date time.Time
	Rate float64
}

// FXSeries is the rate history of one currency pair, sorted by date ascending.
type FXSeries struct {
	From  string
	To    string
	Rates []FXRate
}

// FXTable holds FX series keyed by PairKey.
type FXTable map[string]FXSeries

// PairKey returns the key under which the from/to series is stored in an FXTable.
func PairKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

// Add stores the series under its pair key.
func (t FXTable) Add(s FXSeries) {
	t[PairKey(s.From, s.To)] = s
}

// AlignedSeries holds per-instrument monthly returns in one display currency on
// a shared month-end grid. Returns[j][t-1] is the return of instrument j from
// Dates[t-1] to Dates[t].
type AlignedSeries struct {
	Dates    []time.Time
	Names    []string
	Codes    []string
	Currency string
	Returns  [][]float64
}

// Periods returns the number of monthly return periods.
func (s *AlignedSeries) Periods() int {
	if len(s.Dates) == 0 {
		return 0
	}
	return len(s.Dates) - 1
}

// Frequency of a recurring contribution.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ParseFrequency converts a raw value to a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return f, nil
	}
	return "", fmt.Errorf("unknown contribution frequency %q", raw)
}

// ContributionSchedule is a fixed amount invested periodically.
type ContributionSchedule struct {
	Amount    float64
	Frequency Frequency
}

// dueAt reports whether a contribution is made at cur, given the previous
// grid date. Contributions land on the first point of a new month, quarter or
// year; the initial point never receives one.
func (c *ContributionSchedule) dueAt(prev, cur time.Time) bool {
	if c == nil {
		return false
	}
	switch c.Frequency {
	case FrequencyMonthly:
		return cur.Year() != prev.Year() || cur.Month() != prev.Month()
	case FrequencyQuarterly:
		return cur.Year() != prev.Year() || quarter(cur) != quarter(prev)
	case FrequencyYearly:
		return cur.Year() != prev.Year()
	}
	return false
}

func quarter(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}

// EvolutionPoint is the portfolio value at one month-end. Contribution is the
// cash injected at this point, already included in Value.
type EvolutionPoint struct {
	Date         time.Time `json:"date"`
	Value        float64   `json:"value"`
	Contribution float64   `json:"contribution,omitempty"`
}

// Trajectory is the simulated evolution of a portfolio.
type Trajectory struct {
	Points         []EvolutionPoint
	AmountInvested float64
}

// FinalValue returns the value at the last point.
func (t *Trajectory) FinalValue() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Value
}
