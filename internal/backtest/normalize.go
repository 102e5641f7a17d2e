package backtest

import (
	"math"
	"sort"
	"strings"
	"time"
)

// NormalizeOptions selects the window and display currency for Normalize.
type NormalizeOptions struct {
	Start    time.Time
	End      time.Time
	Currency string
	FX       FXTable
}

// MonthEnd returns the last calendar day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func monthsBetween(a, b time.Time) int {
	return monthKey(b) - monthKey(a)
}

// MonthEndGrid returns every calendar month-end d with start <= d <= end.
func MonthEndGrid(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)

	var grid []time.Time
	for d := MonthEnd(start); !d.After(end); d = time.Date(d.Year(), d.Month()+2, 0, 0, 0, 0, 0, time.UTC) {
		grid = append(grid, d)
	}
	return grid
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResampleMonthEnd keeps the last valid observation of every calendar month and
// snaps it to the month-end date. Non-positive and non-finite closes are dropped.
// The input slice is not modified.
func ResampleMonthEnd(obs []Observation) []Observation {
	sorted := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Close > 0 && !math.IsInf(o.Close, 0) && !math.IsNaN(o.Close) {
			sorted = append(sorted, o)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]Observation, 0, len(sorted)/20+1)
	for _, o := range sorted {
		me := MonthEnd(o.Date)
		if n := len(out); n > 0 && out[n-1].Date.Equal(me) {
			out[n-1].Close = o.Close
			continue
		}
		out = append(out, Observation{Date: me, Close: o.Close})
	}
	return out
}

// Normalize aligns instruments onto the month-end grid of the requested window
// and converts their returns into the display currency. The FX move between
// two month-ends is compounded with the native return:
//
//	r_display = (1 + r_native) * (fx_t / fx_t-1) - 1
//
// Any instrument or currency pair missing a month-end inside the window fails
// the whole call with a DataGapError.
func Normalize(instruments []Instrument, opts NormalizeOptions) (*AlignedSeries, error) {
	if len(instruments) == 0 {
		return nil, invalidField("portfolio", "at least one instrument is required")
	}
	if !opts.Start.Before(opts.End) {
		return nil, invalidField("startDate", "startDate must be before endDate")
	}
	if strings.TrimSpace(opts.Currency) == "" {
		return nil, invalidField("currency", "display currency is required")
	}

	grid := MonthEndGrid(opts.Start, opts.End)
	if len(grid) < 2 {
		return nil, invalidField("endDate", "date range must span at least two month-ends")
	}

	series := &AlignedSeries{
		Dates:    grid,
		Names:    make([]string, len(instruments)),
		Codes:    make([]string, len(instruments)),
		Currency: strings.ToUpper(opts.Currency),
		Returns:  make([][]float64, len(instruments)),
	}

	for j, inst := range instruments {
		prices, err := alignPrices(inst, grid)
		if err != nil {
			return nil, err
		}
		fx, err := fxFactors(inst.Currency, series.Currency, opts.FX, grid)
		if err != nil {
			return nil, err
		}

		returns := make([]float64, len(grid)-1)
		for t := 1; t < len(grid); t++ {
			native := prices[t]/prices[t-1] - 1
			returns[t-1] = (1+native)*(fx[t]/fx[t-1]) - 1
		}

		series.Names[j] = inst.DisplayName()
		series.Codes[j] = inst.Code
		series.Returns[j] = returns
	}

	return series, nil
}

func alignPrices(inst Instrument, grid []time.Time) ([]float64, error) {
	byMonth := make(map[int]float64)
	for _, o := range ResampleMonthEnd(inst.Observations) {
		byMonth[monthKey(o.Date)] = o.Close
	}

	prices := make([]float64, len(grid))
	for i, d := range grid {
		p, ok := byMonth[monthKey(d)]
		if !ok {
			return nil, gapFrom(inst.DisplayName(), grid, i, func(d time.Time) bool {
				_, ok := byMonth[monthKey(d)]
				return ok
			})
		}
		prices[i] = p
	}
	return prices, nil
}

// gapFrom builds a DataGapError for the contiguous run of missing grid points
// starting at index i.
func gapFrom(name string, grid []time.Time, i int, has func(time.Time) bool) *DataGapError {
	last := i
	for last+1 < len(grid) && !has(grid[last+1]) {
		last++
	}
	return &DataGapError{Instrument: name, MissingFrom: grid[i], MissingTo: grid[last]}
}

// fxFactors returns the display-per-native rate at every grid date. The rate
// used for a date is the latest one published on or before it.
func fxFactors(native, display string, table FXTable, grid []time.Time) ([]float64, error) {
	factors := make([]float64, len(grid))
	native = strings.ToUpper(strings.TrimSpace(native))
	if native == "" || native == display {
		for i := range factors {
			factors[i] = 1
		}
		return factors, nil
	}

	pair := PairKey(native, display)
	series, ok := table[pair]
	inverse := false
	if !ok {
		series, ok = table[PairKey(display, native)]
		inverse = true
	}
	if !ok || len(series.Rates) == 0 {
		return nil, &DataGapError{Instrument: pair, MissingFrom: grid[0], MissingTo: grid[len(grid)-1]}
	}

	rateAt := func(d time.Time) (float64, bool) {
		idx := sort.Search(len(series.Rates), func(k int) bool {
			return series.Rates[k].Date.After(d)
		})
		if idx == 0 {
			return 0, false
		}
		r := series.Rates[idx-1].Rate
		if r <= 0 {
			return 0, false
		}
		return r, true
	}

	for i, d := range grid {
		r, ok := rateAt(d)
		if !ok {
			return nil, gapFrom(pair, grid, i, func(d time.Time) bool {
				_, ok := rateAt(d)
				return ok
			})
		}
		if inverse {
			r = 1 / r
		}
		factors[i] = r
	}
	return factors, nil
}
