package backtest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CorrelationPair is the Pearson correlation of two instruments' monthly
// returns. Correlation is nil when either series has zero variance.
type CorrelationPair struct {
	ETF1        string   `json:"etf1"`
	ETF2        string   `json:"etf2"`
	Correlation *float64 `json:"correlation"`
}

// CorrelationMatrix lists every unordered pair once, in instrument order.
type CorrelationMatrix struct {
	Correlations []CorrelationPair `json:"correlations"`
	ETFNames     []string          `json:"etfNames"`
}

// Pearson returns the correlation coefficient of x and y. ok is false when
// the lengths differ, fewer than two samples are given, or either series is
// constant. Identical series give exactly 1. The result is symmetric in its
// arguments and clamped to [-1, 1].
func Pearson(x, y []float64) (r float64, ok bool) {
	n := len(x)
	if n < 2 || n != len(y) || isConstant(x) || isConstant(y) {
		return math.NaN(), false
	}
	if floats.Equal(x, y) {
		return 1, true
	}

	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return math.NaN(), false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// Correlate computes the pairwise correlation of every instrument in the
// series. At least two instruments are required.
func Correlate(series *AlignedSeries) (*CorrelationMatrix, error) {
	n := len(series.Returns)
	if n < 2 {
		return nil, &InsufficientInstrumentsError{Count: n, Required: 2}
	}

	pairs := make([]CorrelationPair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pair := CorrelationPair{ETF1: series.Names[i], ETF2: series.Names[j]}
			if r, ok := Pearson(series.Returns[i], series.Returns[j]); ok {
				pair.Correlation = floatPtr(r)
			}
			pairs = append(pairs, pair)
		}
	}

	names := make([]string, n)
	copy(names, series.Names)
	return &CorrelationMatrix{Correlations: pairs, ETFNames: names}, nil
}
