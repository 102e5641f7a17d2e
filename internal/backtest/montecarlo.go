package backtest

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultMonteCarloPaths is the number of simulated paths when none is given.
	DefaultMonteCarloPaths = 1000

	// SamplingAssumption describes how forward returns are drawn.
	SamplingAssumption = "normal-iid"

	monteCarloChunk = 250
)

// MonteCarloParams configures a projection. Rand is the only source of
// randomness; the same seed yields the same bands.
type MonteCarloParams struct {
	StartValue float64
	Months     int
	Paths      int
	Rand       *rand.Rand
}

// MonteCarloPoint holds the cross-path percentiles of portfolio value after
// Month months. Month 0 is the start value.
type MonteCarloPoint struct {
	Month        int     `json:"month"`
	Percentile5  float64 `json:"percentile5"`
	Percentile16 float64 `json:"percentile16"`
	Percentile50 float64 `json:"percentile50"`
	Percentile84 float64 `json:"percentile84"`
	Percentile95 float64 `json:"percentile95"`
}

// MonteCarloStats are the parameters the paths were drawn with.
type MonteCarloStats struct {
	CurrentValue  float64 `json:"currentValue"`
	MonthlyMean   float64 `json:"monthlyMean"`
	MonthlyStdDev float64 `json:"monthlyStdDev"`
	AnnualMean    float64 `json:"annualMean"`
	AnnualStdDev  float64 `json:"annualStdDev"`
}

// FinalValues are the percentile values at the end of the horizon.
type FinalValues struct {
	VeryBad float64 `json:"veryBad"`
	Bad     float64 `json:"bad"`
	Average float64 `json:"average"`
	Good    float64 `json:"good"`
	Great   float64 `json:"great"`
}

// Projection is the reduced path ensemble.
type Projection struct {
	Points      []MonteCarloPoint `json:"chartData"`
	Stats       MonteCarloStats   `json:"stats"`
	FinalValues FinalValues       `json:"finalValues"`
	Paths       int               `json:"simulations"`
	Assumption  string            `json:"assumption"`
}

// PortfolioReturns combines instrument returns into the monthly return of a
// portfolio held at constant target weights, net of TER. Its variance is
// w'Σw, so cross-instrument correlation is preserved.
func PortfolioReturns(series *AlignedSeries, weights, ters []float64) ([]float64, error) {
	if err := ValidateAllocation(weights, ters); err != nil {
		return nil, err
	}
	if len(weights) != len(series.Returns) {
		return nil, invalidField("portfolio", "weights do not match the instruments")
	}

	var drag float64
	for j, w := range weights {
		drag += w * ters[j] / 12
	}

	out := make([]float64, series.Periods())
	for t := range out {
		var r float64
		for j, w := range weights {
			r += w * series.Returns[j][t]
		}
		out[t] = r - drag
	}
	return out, nil
}

// ProjectMonteCarlo estimates the portfolio's monthly mean and volatility from
// the aligned series and projects it forward. See Project.
func ProjectMonteCarlo(ctx context.Context, series *AlignedSeries, weights, ters []float64, p MonteCarloParams) (*Projection, error) {
	returns, err := PortfolioReturns(series, weights, ters)
	if err != nil {
		return nil, err
	}
	return Project(ctx, returns, p)
}

// Project draws p.Paths independent paths of monthly returns from a normal
// distribution with the mean and population standard deviation of the
// historical returns, and reduces them to percentile bands per month. Values
// are floored at zero. Paths are generated in fixed-size chunks, each seeded
// in order from p.Rand, so results do not depend on scheduling.
func Project(ctx context.Context, historical []float64, p MonteCarloParams) (*Projection, error) {
	fields := make(map[string]string)
	if len(historical) < 2 {
		fields["history"] = "at least two monthly returns are required"
	}
	if p.Months <= 0 {
		fields["forecastYears"] = "forecast horizon must be positive"
	}
	if p.Paths <= 0 {
		fields["simulations"] = "number of simulations must be positive"
	}
	if math.IsNaN(p.StartValue) || p.StartValue < 0 {
		fields["initialAmount"] = "start value must not be negative"
	}
	if p.Rand == nil {
		fields["seed"] = "a random source is required"
	}
	if len(fields) > 0 {
		return nil, &InputValidationError{Fields: fields}
	}

	mu := mean(historical)
	sigma := stdDev(historical)

	// values[m][path]
	values := make([][]float64, p.Months+1)
	for m := range values {
		values[m] = make([]float64, p.Paths)
	}

	chunks := (p.Paths + monteCarloChunk - 1) / monteCarloChunk
	seeds := make([]uint64, chunks)
	for c := range seeds {
		seeds[c] = p.Rand.Uint64()
	}

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < chunks; c++ {
		g.Go(func() error {
			draw := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewPCG(seeds[c], uint64(c))}
			first := c * monteCarloChunk
			last := min(first+monteCarloChunk, p.Paths)
			for path := first; path < last; path++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				v := p.StartValue
				values[0][path] = v
				for m := 1; m <= p.Months; m++ {
					v *= 1 + draw.Rand()
					if v < 0 {
						v = 0
					}
					values[m][path] = v
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	points := make([]MonteCarloPoint, p.Months+1)
	for m, column := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sort.Float64s(column)
		points[m] = MonteCarloPoint{
			Month:        m,
			Percentile5:  percentile(column, 0.05),
			Percentile16: percentile(column, 0.16),
			Percentile50: percentile(column, 0.50),
			Percentile84: percentile(column, 0.84),
			Percentile95: percentile(column, 0.95),
		}
	}

	last := points[len(points)-1]
	return &Projection{
		Points: points,
		Stats: MonteCarloStats{
			CurrentValue:  p.StartValue,
			MonthlyMean:   mu,
			MonthlyStdDev: sigma,
			AnnualMean:    mu * 12,
			AnnualStdDev:  sigma * math.Sqrt(12),
		},
		FinalValues: FinalValues{
			VeryBad: last.Percentile5,
			Bad:     last.Percentile16,
			Average: last.Percentile50,
			Good:    last.Percentile84,
			Great:   last.Percentile95,
		},
		Paths:      p.Paths,
		Assumption: SamplingAssumption,
	}, nil
}
