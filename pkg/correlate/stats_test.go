package correlate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeumaierSum(t *testing.T) {
	// The classic case naive summation gets wrong: the small terms are
	// lost against the large one without compensation.
	var s neumaierSum
	s.add(1.0)
	s.add(1e100)
	s.add(1.0)
	s.add(-1e100)

	assert.Equal(t, 2.0, s.value())
}

func TestMeanVariance(t *testing.T) {
	values := []float64{10, 12, 15, 11, 14}

	assert.InDelta(t, 12.4, mean(values), 1e-12)
	assert.InDelta(t, 4.3, variance(values), 1e-12)
}

func TestDetrend(t *testing.T) {
	t.Run("pure linear trend becomes flat", func(t *testing.T) {
		values := []float64{1, 3, 5, 7, 9}

		out := detrend(values)

		for _, v := range out {
			assert.InDelta(t, 0, v, 1e-9)
		}
	})

	t.Run("trend plus signal keeps the signal", func(t *testing.T) {
		signal := []float64{0, 1, 0, -1, 0, 1, 0, -1}
		values := make([]float64, len(signal))
		for i, s := range signal {
			values[i] = s + 2*float64(i) + 5
		}

		out := detrend(values)

		// The residual is the signal minus its own tiny linear fit.
		assert.InDelta(t, 0, mean(out), 1e-9)
		assert.Greater(t, variance(out), 0.3)
	})
}

func TestZScore(t *testing.T) {
	t.Run("normalizes to zero mean unit variance", func(t *testing.T) {
		out, ok := zscore([]float64{2, 4, 6, 8})

		require.True(t, ok)
		assert.InDelta(t, 0, mean(out), 1e-12)
		assert.InDelta(t, 1, variance(out), 1e-12)
	})

	t.Run("constant series has no z-scores", func(t *testing.T) {
		_, ok := zscore([]float64{5, 5, 5, 5})
		assert.False(t, ok)
	})
}

func TestPearson(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		r, ok := pearson([]float64{1, 2, 3, 4}, []float64{10, 20, 30, 40})
		require.True(t, ok)
		assert.InDelta(t, 1, r, 1e-12)
	})

	t.Run("perfect negative", func(t *testing.T) {
		r, ok := pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
		require.True(t, ok)
		assert.InDelta(t, -1, r, 1e-12)
	})

	t.Run("uncorrelated", func(t *testing.T) {
		r, ok := pearson([]float64{1, -1, 1, -1}, []float64{1, 1, -1, -1})
		require.True(t, ok)
		assert.InDelta(t, 0, r, 1e-12)
	})

	t.Run("constant side is undefined", func(t *testing.T) {
		_, ok := pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
		assert.False(t, ok)
	})
}

func TestPValue(t *testing.T) {
	t.Run("zero correlation is never significant", func(t *testing.T) {
		assert.InDelta(t, 1, pValue(0, 100), 1e-9)
	})

	t.Run("perfect correlation is maximally significant", func(t *testing.T) {
		assert.Equal(t, 0.0, pValue(1, 30))
	})

	t.Run("known value", func(t *testing.T) {
		// r=0.5, n=30: t = 0.5*sqrt(28/0.75) ≈ 3.055, df=28, p ≈ 0.0049.
		p := pValue(0.5, 30)
		assert.InDelta(t, 0.0049, p, 0.0005)
	})

	t.Run("tiny sample is never significant", func(t *testing.T) {
		assert.Equal(t, 1.0, pValue(0.99, 2))
	})

	t.Run("sign does not matter", func(t *testing.T) {
		assert.InDelta(t, pValue(0.6, 25), pValue(-0.6, 25), 1e-12)
	})
}

func TestRegIncBeta(t *testing.T) {
	// I_x(1,1) is the uniform CDF.
	assert.InDelta(t, 0.25, regIncBeta(1, 1, 0.25), 1e-9)
	assert.InDelta(t, 0.5, regIncBeta(1, 1, 0.5), 1e-9)

	// Boundaries.
	assert.Equal(t, 0.0, regIncBeta(2, 3, 0))
	assert.Equal(t, 1.0, regIncBeta(2, 3, 1))

	// I_0.5(a,a) = 0.5 by symmetry.
	assert.InDelta(t, 0.5, regIncBeta(3, 3, 0.5), 1e-9)
	assert.InDelta(t, 0.5, regIncBeta(14, 14, 0.5), 1e-9)
}

func TestPValueMonotonicInR(t *testing.T) {
	prev := 1.0
	for _, r := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		p := pValue(r, 40)
		assert.Less(t, p, prev, "p-value must shrink as |r| grows (r=%v)", r)
		assert.False(t, math.IsNaN(p))
		prev = p
	}
}
