package piven

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		valid  bool
	}{
		{"defaults", NewParams(15), true},
		{"alpha zero", Params{Lambda: 15, Soften: 160, Alpha: 0}, false},
		{"alpha one", Params{Lambda: 15, Soften: 160, Alpha: 1}, false},
		{"alpha nan", Params{Lambda: 15, Soften: 160, Alpha: math.NaN()}, false},
		{"soften zero", Params{Lambda: 15, Soften: 0, Alpha: 0.05}, false},
		{"soften negative", Params{Lambda: 15, Soften: -5, Alpha: 0.05}, false},
		{"soften inf", Params{Lambda: 15, Soften: math.Inf(1), Alpha: 0.05}, false},
		{"lambda missing", Params{Soften: 160, Alpha: 0.05}, false},
		{"lambda negative", Params{Lambda: -1, Soften: 160, Alpha: 0.05}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var _, err = NewLoss(tt.params)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidHyperparameter)
			}
		})
	}
}

func TestParamsWithDefaults(t *testing.T) {
	var p = Params{Lambda: 3}.WithDefaults()
	assert.Equal(t, NewParams(3), p)

	p = Params{Lambda: 3, Soften: 10, Alpha: 0.1}.WithDefaults()
	assert.Equal(t, 10.0, p.Soften)
	assert.Equal(t, 0.1, p.Alpha)
}

func TestLossSinglePointInsideInterval(t *testing.T) {
	var loss, err = NewLoss(NewParams(15))
	require.NoError(t, err)

	var out = Output{Upper: []float64{5}, Lower: []float64{1}, Weight: []float64{0.5}}
	assert.Equal(t, []float64{3}, out.Point())

	terms, err := loss.Evaluate([]float64{3}, out)
	require.NoError(t, err)
	assert.Equal(t, 0.0, terms.Point)
	assert.InDelta(t, 1.0, terms.SoftCoverage, 1e-12)
	assert.Equal(t, 0.0, terms.Coverage)
	assert.InDelta(t, 4/(1+captureEps), terms.Width, 1e-9)
	assert.InDelta(t, terms.Width, terms.Total, 1e-12)
}

func TestLossShapeErrors(t *testing.T) {
	var loss, err = NewLoss(NewParams(15))
	require.NoError(t, err)

	_, err = loss.Evaluate(nil, Output{})
	require.ErrorIs(t, err, ErrIncompatibleShape)

	_, err = loss.Evaluate([]float64{1, 2}, Output{Upper: []float64{1}, Lower: []float64{0}, Weight: []float64{0.5}})
	require.ErrorIs(t, err, ErrIncompatibleShape)

	_, err = loss.Evaluate([]float64{1}, Output{Upper: []float64{1}, Lower: []float64{0, 1}, Weight: []float64{0.5}})
	require.ErrorIs(t, err, ErrIncompatibleShape)

	_, err = loss.Score([]float64{1}, Prediction{Point: []float64{1}, Lower: []float64{0}})
	require.ErrorIs(t, err, ErrIncompatibleShape)
}

func TestLossNonNegative(t *testing.T) {
	var loss, err = NewLoss(Params{Lambda: 5, Soften: 20, Alpha: 0.1})
	require.NoError(t, err)

	var rnd = rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		var n = 1 + rnd.Intn(16)
		var y = make([]float64, n)
		var out = Output{
			Upper:  make([]float64, n),
			Lower:  make([]float64, n),
			Weight: make([]float64, n),
		}
		for i := 0; i < n; i++ {
			y[i] = rnd.NormFloat64() * 3
			out.Lower[i] = rnd.NormFloat64() * 3
			out.Upper[i] = rnd.NormFloat64() * 3
			out.Weight[i] = rnd.Float64()
		}
		terms, err := loss.Evaluate(y, out)
		require.NoError(t, err)
		require.GreaterOrEqual(t, terms.Total, 0.0)
		require.GreaterOrEqual(t, terms.Width, 0.0)
		require.GreaterOrEqual(t, terms.Coverage, 0.0)
		require.GreaterOrEqual(t, terms.Point, 0.0)
	}
}

func TestLossNonNegativeForInvertedInterval(t *testing.T) {
	var loss, err = NewLoss(Params{Lambda: 1e-9, Soften: 160, Alpha: 0.05})
	require.NoError(t, err)

	var out = Output{Upper: []float64{-0.003}, Lower: []float64{0.003}, Weight: []float64{0.5}}
	terms, err := loss.Evaluate([]float64{0}, out)
	require.NoError(t, err)
	assert.Greater(t, terms.Width, 0.0)
	assert.GreaterOrEqual(t, terms.Total, 0.0)
}

func TestCoverageTermGrowsWithShortfall(t *testing.T) {
	var loss, err = NewLoss(NewParams(15))
	require.NoError(t, err)

	const n = 10
	var prev float64
	for missed := 0; missed <= n; missed++ {
		var y = make([]float64, n)
		var out = Output{
			Upper:  make([]float64, n),
			Lower:  make([]float64, n),
			Weight: make([]float64, n),
		}
		for i := 0; i < n; i++ {
			out.Upper[i] = 1
			out.Lower[i] = -1
			out.Weight[i] = 0.5
			if i < missed {
				y[i] = 5
			}
		}
		terms, err := loss.Evaluate(y, out)
		require.NoError(t, err)
		if missed == 0 {
			require.Equal(t, 0.0, terms.Coverage)
		} else {
			require.Greater(t, terms.Coverage, prev, "missed %v", missed)
		}
		prev = terms.Coverage
	}
}

func TestLossGradientMatchesFiniteDifferences(t *testing.T) {
	var loss, err = NewLoss(Params{Lambda: 3, Soften: 2, Alpha: 0.2})
	require.NoError(t, err)

	var y = []float64{0, 1, 2, 3}
	var out = Output{
		Upper:  []float64{0.5, 0.2, 2.5, 1.0},
		Lower:  []float64{-0.5, -0.3, 1.5, 0.0},
		Weight: []float64{0.3, 0.6, 0.5, 0.8},
	}
	_, grad, err := loss.Gradient(y, out)
	require.NoError(t, err)

	var total = func(o Output) float64 {
		terms, err := loss.Evaluate(y, o)
		require.NoError(t, err)
		return terms.Total
	}
	var clone = func(o Output) Output {
		return Output{
			Upper:  append([]float64(nil), o.Upper...),
			Lower:  append([]float64(nil), o.Lower...),
			Weight: append([]float64(nil), o.Weight...),
		}
	}

	const eps = 1e-6
	var channels = []struct {
		name string
		get  func(o Output) []float64
	}{
		{"upper", func(o Output) []float64 { return o.Upper }},
		{"lower", func(o Output) []float64 { return o.Lower }},
		{"weight", func(o Output) []float64 { return o.Weight }},
	}
	for _, ch := range channels {
		for i := range y {
			var plus, minus = clone(out), clone(out)
			ch.get(plus)[i] += eps
			ch.get(minus)[i] -= eps
			var numeric = (total(plus) - total(minus)) / (2 * eps)
			require.InDelta(t, numeric, ch.get(grad)[i], 1e-5, "%v[%v]", ch.name, i)
		}
	}
}

func TestScoreMatchesEvaluate(t *testing.T) {
	var loss, err = NewLoss(NewParams(15))
	require.NoError(t, err)

	var y = []float64{1, 2, 3, 10}
	var out = Output{
		Upper:  []float64{2, 3, 3.5, 4},
		Lower:  []float64{0, 1, 2.5, 3},
		Weight: []float64{0.5, 0.4, 0.9, 0.1},
	}
	evaluated, err := loss.Evaluate(y, out)
	require.NoError(t, err)
	scored, err := loss.Score(y, Blend(out))
	require.NoError(t, err)
	assert.InDelta(t, evaluated.Total, scored.Total, 1e-12)
	assert.Greater(t, scored.Coverage, 0.0)
}
