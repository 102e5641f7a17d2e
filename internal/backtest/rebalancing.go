package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// StrategyResult is the outcome of one strategy in a comparison. Error is set
// when that strategy's simulation failed; the other fields are then zero.
// DifferenceFromMax is this CAGR minus the best CAGR, so it is zero for the
// best strategy and negative for the rest.
type StrategyResult struct {
	Strategy          Strategy         `json:"strategy"`
	StrategyLabel     string           `json:"strategyLabel"`
	CAGR              float64          `json:"cagr"`
	FinalValue        float64          `json:"finalValue"`
	DifferenceFromMax float64          `json:"differenceFromMax"`
	Evolution         []EvolutionPoint `json:"evolution,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Comparison ranks strategies by CAGR, best first. Failed strategies are
// listed after the successful ones in their requested order.
type Comparison struct {
	Strategies []StrategyResult `json:"strategies"`
}

// CompareOptions tunes CompareStrategies.
type CompareOptions struct {
	Strategies       []Strategy
	IncludeEvolution bool
	Workers          int
}

// CompareStrategies simulates the same portfolio once per strategy. Only the
// strategy differs between runs. A failing strategy is reported in its own
// result and does not stop the others. A cancelled context returns ctx.Err()
// and no comparison.
func CompareStrategies(ctx context.Context, series *AlignedSeries, params SimulationParams, opts CompareOptions) (*Comparison, error) {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultComparisonStrategies()
	}
	for _, s := range strategies {
		if !s.Valid() {
			return nil, invalidField("strategies", "unknown rebalancing strategy: "+string(s))
		}
	}
	if err := ValidateAllocation(params.Weights, params.TERs); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]StrategyResult, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range strategies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runStrategy(series, params, s, opts.IncludeEvolution)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rank(results)
	return &Comparison{Strategies: results}, nil
}

func runStrategy(series *AlignedSeries, params SimulationParams, s Strategy, withEvolution bool) (res StrategyResult) {
	res = StrategyResult{Strategy: s, StrategyLabel: s.Label()}
	defer func() {
		if r := recover(); r != nil {
			res = StrategyResult{Strategy: s, StrategyLabel: s.Label(), Error: fmt.Sprintf("simulation panicked: %v", r)}
		}
	}()

	params.Strategy = s
	traj, err := Simulate(series, params)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.CAGR = TrajectoryCAGR(traj)
	res.FinalValue = traj.FinalValue()
	if withEvolution {
		res.Evolution = traj.Points
	}
	return res
}

func rank(results []StrategyResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Error == "") != (b.Error == "") {
			return a.Error == ""
		}
		if a.Error != "" {
			return false
		}
		return a.CAGR > b.CAGR
	})

	if len(results) == 0 || results[0].Error != "" {
		return
	}
	best := results[0].CAGR
	for i := range results {
		if results[i].Error == "" {
			results[i].DifferenceFromMax = results[i].CAGR - best
		}
	}
}
