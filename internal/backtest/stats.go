package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopStdDev(values, nil)
}

// percentile returns the p-quantile (0 <= p <= 1) of sorted values by linear
// interpolation of the empirical distribution. It is monotone in p.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	return stat.Quantile(math.Max(0, math.Min(1, p)), stat.LinInterp, sorted, nil)
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func sum(values []float64) float64 {
	return floats.Sum(values)
}

func floatPtr(v float64) *float64 {
	return &v
}
