package backtest

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPearson(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, 0.005, -0.011, 0.024, 0.0, -0.007}
	b := []float64{0.02, -0.01, 0.01, 0.004, -0.02, 0.03, 0.001, 0.002}

	t.Run("identical series correlate exactly", func(t *testing.T) {
		r, ok := Pearson(a, a)
		require.True(t, ok)
		assert.Equal(t, 1.0, r)
	})

	t.Run("symmetric", func(t *testing.T) {
		ab, ok := Pearson(a, b)
		require.True(t, ok)
		ba, _ := Pearson(b, a)
		assert.Equal(t, ab, ba)
		assert.True(t, ab >= -1 && ab <= 1)
	})

	t.Run("mirrored series are perfectly anti-correlated", func(t *testing.T) {
		neg := make([]float64, len(a))
		for i, v := range a {
			neg[i] = -v
		}
		r, ok := Pearson(a, neg)
		require.True(t, ok)
		assert.InDelta(t, -1, r, 1e-12)
	})

	t.Run("matches the textbook coefficient", func(t *testing.T) {
		r, ok := Pearson([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 5, 4, 5})
		require.True(t, ok)
		assert.InDelta(t, 6/math.Sqrt(60), r, 1e-12)
	})

	t.Run("constant series is undefined", func(t *testing.T) {
		_, ok := Pearson(a, constant(0.01, len(a)))
		assert.False(t, ok)
	})

	t.Run("length mismatch is undefined", func(t *testing.T) {
		_, ok := Pearson(a, b[:3])
		assert.False(t, ok)
	})
}

func TestCorrelate(t *testing.T) {
	t.Run("emits every unordered pair once", func(t *testing.T) {
		base := comparisonSeries()
		series := seriesOf(base.Returns[0], base.Returns[1], base.Returns[0], constant(0.002, 24))

		m, err := Correlate(series)
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "B", "C", "D"}, m.ETFNames)
		require.Len(t, m.Correlations, 6)

		assert.Equal(t, "A", m.Correlations[1].ETF1)
		assert.Equal(t, "C", m.Correlations[1].ETF2)
		require.NotNil(t, m.Correlations[1].Correlation)
		assert.Equal(t, 1.0, *m.Correlations[1].Correlation)

		for _, p := range m.Correlations {
			if p.ETF2 == "D" {
				assert.Nil(t, p.Correlation, "%s/%s", p.ETF1, p.ETF2)
			}
		}
	})

	t.Run("single instrument is rejected", func(t *testing.T) {
		_, err := Correlate(seriesOf(constant(0.01, 5)))

		var insufficient *InsufficientInstrumentsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 1, insufficient.Count)
	})
}
