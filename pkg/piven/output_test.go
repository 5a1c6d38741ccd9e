package piven

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBlendValue(t *testing.T) {
	assert.InDelta(t, 4.4, BlendValue(10, 2, 0.3), 1e-12)
	assert.Equal(t, 10.0, BlendValue(10, 2, 1))
	assert.Equal(t, 2.0, BlendValue(10, 2, 0))
}

func TestBlendStaysInsideOrderedInterval(t *testing.T) {
	var rnd = rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		var lower = rnd.NormFloat64() * 10
		var upper = lower + rnd.Float64()*10
		var v = rnd.Float64()
		var point = BlendValue(upper, lower, v)
		require.GreaterOrEqual(t, point, lower-1e-12)
		require.LessOrEqual(t, point, upper+1e-12)
	}
}

func TestSplitRawAndBlend(t *testing.T) {
	var raw = mat.NewDense(2, 3, []float64{
		10, 2, 0.3,
		1, 4, 0.5, // inverted interval passes through untouched
	})
	var out, err = SplitRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 1}, out.Upper)
	assert.Equal(t, []float64{2, 4}, out.Lower)
	assert.Equal(t, []float64{0.3, 0.5}, out.Weight)

	var p = Blend(out)
	var want = Prediction{
		Point: []float64{4.4, 2.5},
		Lower: []float64{2, 4},
		Upper: []float64{10, 1},
	}
	if diff := cmp.Diff(want, p, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Blend mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, mat.Equal(raw, out.Raw()))
}

func TestSplitRawRejectsWrongWidth(t *testing.T) {
	var _, err = SplitRaw(mat.NewDense(2, 2, nil))
	require.ErrorIs(t, err, ErrIncompatibleShape)
}

func TestNormalizeTargets(t *testing.T) {
	var flat, err = TargetVector([]float64{1, 2, 3})
	require.NoError(t, err)

	pair, err := NormalizeTargets(flat)
	require.NoError(t, err)
	var rows, cols = pair.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{1, 2, 3}, mat.Col(nil, 0, pair))
	assert.Equal(t, []float64{1, 2, 3}, mat.Col(nil, 1, pair))
	assert.Equal(t, []float64{1, 2, 3}, TargetColumn(pair))

	again, err := NormalizeTargets(pair)
	require.NoError(t, err)
	assert.Same(t, pair, again)

	_, err = NormalizeTargets(mat.NewDense(3, 3, nil))
	require.ErrorIs(t, err, ErrIncompatibleShape)

	_, err = TargetVector(nil)
	require.ErrorIs(t, err, ErrIncompatibleShape)
}

func TestNormalizeTargetsCopiesForeignMatrix(t *testing.T) {
	var two = mat.NewDense(2, 2, []float64{1, 1, 2, 2})
	var res, err = NormalizeTargets(two.T())
	require.NoError(t, err)
	assert.True(t, mat.Equal(two.T(), res))
}

func TestMetrics(t *testing.T) {
	assert.Equal(t, 1.0, Coverage([]float64{3}, []float64{1}, []float64{5}))
	assert.Equal(t, 0.0, Coverage([]float64{6}, []float64{1}, []float64{5}))
	assert.Equal(t, 4.0, Width([]float64{1}, []float64{5}))
	assert.Equal(t, 0.5, Coverage([]float64{1, 5}, []float64{1, 0}, []float64{5, 4}))
	assert.Equal(t, -1.0, Width([]float64{2}, []float64{1}))

	assert.InDelta(t, 1.5, MAE([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), RMSE([]float64{1, 2}, []float64{2, 4}), 1e-12)

	assert.True(t, math.IsNaN(Coverage(nil, nil, nil)))
	assert.Panics(t, func() { Width([]float64{1}, nil) })
}

func TestSoftCoverageConvergesToHard(t *testing.T) {
	var y = []float64{0, 0.5, 2, -1}
	var low = []float64{-1, 0.2, 0, 0}
	var high = []float64{1, 1, 1, 1}
	var hard = Coverage(y, low, high)
	require.Equal(t, 0.5, hard)

	var prevErr = math.Inf(1)
	for _, soften := range []float64{1, 10, 100, 1000} {
		var e = math.Abs(SoftCoverage(y, low, high, soften) - hard)
		require.Less(t, e, prevErr, "soften %v", soften)
		prevErr = e
	}
	assert.InDelta(t, hard, SoftCoverage(y, low, high, 1e6), 1e-12)
}

func TestSoftCoverageMatchesLoss(t *testing.T) {
	var loss, err = NewLoss(Params{Lambda: 1, Soften: 3, Alpha: 0.1})
	require.NoError(t, err)
	var y = []float64{0, 0.5, 2, -1}
	var out = Output{
		Upper:  []float64{1, 1, 1, 1},
		Lower:  []float64{-1, 0.2, 0, 0},
		Weight: []float64{0.5, 0.5, 0.5, 0.5},
	}
	terms, err := loss.Evaluate(y, out)
	require.NoError(t, err)
	assert.InDelta(t, SoftCoverage(y, out.Lower, out.Upper, 3), terms.SoftCoverage, 1e-12)
}
