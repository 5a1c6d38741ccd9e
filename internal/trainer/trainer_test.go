package trainer

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ChizhovVadim/piven/internal/ml"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

type recordingObserver struct {
	stats []EpochStats
}

func (o *recordingObserver) ObserveEpoch(stats EpochStats) {
	o.stats = append(o.stats, stats)
}

func testConfig() Config {
	var cfg = DefaultConfig()
	cfg.Hidden = []int{16}
	cfg.Epochs = 30
	cfg.BatchSize = 32
	cfg.Threads = 2
	cfg.LearningRate = 0.01
	cfg.Codec = "none"
	return cfg
}

func linearData(n int, seed int64) (*mat.Dense, *mat.VecDense) {
	var rnd = rand.New(rand.NewSource(seed))
	var x = mat.NewDense(n, 1, nil)
	var y = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		var v = rnd.Float64()*2 - 1
		x.Set(i, 0, v)
		y.SetVec(i, 2*v+rnd.NormFloat64()*(0.1+0.2*math.Abs(v)))
	}
	return x, y
}

func TestBuildValidates(t *testing.T) {
	var cfg = testConfig()
	cfg.Alpha = 1
	var _, err = Build(cfg, 3)
	require.ErrorIs(t, err, piven.ErrInvalidHyperparameter)

	cfg = testConfig()
	_, err = Build(cfg, 0)
	require.ErrorIs(t, err, piven.ErrIncompatibleShape)

	cfg = testConfig()
	cfg.Activation = "swish"
	_, err = Build(cfg, 3)
	require.Error(t, err)

	cfg = testConfig()
	cfg.BatchSize = 0
	_, err = Build(cfg, 3)
	require.Error(t, err)
}

func TestFitLowersValidationLoss(t *testing.T) {
	var x, y = linearData(500, 1)
	var observer = &recordingObserver{}
	var m, err = Build(testConfig(), 1, WithObserver(observer))
	require.NoError(t, err)

	require.NoError(t, m.Fit(context.Background(), x, y))
	require.Len(t, observer.stats, 30)

	var best = math.Inf(1)
	for i, s := range observer.stats {
		assert.Equal(t, i+1, s.Epoch)
		assert.False(t, math.IsNaN(s.TrainLoss))
		best = math.Min(best, s.ValidationLoss)
	}
	assert.Less(t, best, observer.stats[0].ValidationLoss)

	raw, err := m.Predict(x)
	require.NoError(t, err)
	var rows, cols = raw.Dims()
	assert.Equal(t, 500, rows)
	assert.Equal(t, piven.Channels, cols)

	out, err := piven.SplitRaw(raw)
	require.NoError(t, err)
	for i, v := range out.Weight {
		require.Greater(t, v, 0.0, "row %v", i)
		require.Less(t, v, 1.0, "row %v", i)
	}
}

func TestFitIsDeterministicWithOneThread(t *testing.T) {
	var x, y = linearData(200, 2)
	var cfg = testConfig()
	cfg.Threads = 1
	cfg.Epochs = 3

	var predict = func() *mat.Dense {
		var m, err = Build(cfg, 1)
		require.NoError(t, err)
		require.NoError(t, m.Fit(context.Background(), x, y))
		raw, err := m.Predict(x)
		require.NoError(t, err)
		return raw
	}
	assert.True(t, mat.Equal(predict(), predict()))
}

func TestFitShapeErrors(t *testing.T) {
	var m, err = Build(testConfig(), 2)
	require.NoError(t, err)

	var x = mat.NewDense(3, 2, nil)
	err = m.Fit(context.Background(), x, mat.NewDense(3, 3, nil))
	require.ErrorIs(t, err, piven.ErrIncompatibleShape)

	err = m.Fit(context.Background(), x, mat.NewVecDense(2, nil))
	require.ErrorIs(t, err, piven.ErrIncompatibleShape)

	err = m.Fit(context.Background(), mat.NewDense(3, 1, nil), mat.NewVecDense(3, nil))
	require.ErrorIs(t, err, piven.ErrIncompatibleShape)

	_, err = m.Predict(mat.NewDense(3, 5, nil))
	require.ErrorIs(t, err, piven.ErrIncompatibleShape)
}

func TestFitHonoursCancellation(t *testing.T) {
	var x, y = linearData(100, 3)
	var m, err = Build(testConfig(), 1)
	require.NoError(t, err)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Fit(ctx, x, y), context.Canceled)
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	var cfg = testConfig()
	cfg.Hidden = []int{3}
	cfg.Activation = "tanh"
	var m, err = Build(cfg, 2)
	require.NoError(t, err)
	var rnd = rand.New(rand.NewSource(5))
	m.initWeights(rnd, []float64{0, 1})

	var input = []float64{0.4, -0.7}
	var outputErr = []float64{0.3, -1.1, 0.8}
	// cost = sum(outputErr * output), so d(cost)/d(output) = outputErr
	var cost = func() float64 {
		var neurons = m.newNeurons()
		m.forward(neurons, input)
		var res float64
		for i, n := range neurons[len(neurons)-1] {
			res += outputErr[i] * n.A
		}
		return res
	}

	var neurons = m.newNeurons()
	var wg = []ml.Matrix{ml.NewMatrix(3, 2), ml.NewMatrix(3, 3)}
	var bg = []ml.Matrix{ml.NewMatrix(3, 1), ml.NewMatrix(3, 1)}
	m.forward(neurons, input)
	m.backward(neurons, input, outputErr, wg, bg)

	const eps = 1e-6
	for layerIndex := range m.weights {
		for i := range m.weights[layerIndex].Data {
			var w = &m.weights[layerIndex].Data[i]
			var saved = *w
			*w = saved + eps
			var plus = cost()
			*w = saved - eps
			var minus = cost()
			*w = saved
			require.InDelta(t, (plus-minus)/(2*eps), wg[layerIndex].Data[i], 1e-6)
		}
		for i := range m.biases[layerIndex].Data {
			var b = &m.biases[layerIndex].Data[i]
			var saved = *b
			*b = saved + eps
			var plus = cost()
			*b = saved - eps
			var minus = cost()
			*b = saved
			require.InDelta(t, (plus-minus)/(2*eps), bg[layerIndex].Data[i], 1e-6)
		}
	}
}

func TestSaveLoadModel(t *testing.T) {
	var x, y = linearData(100, 4)
	var cfg = testConfig()
	cfg.Epochs = 2
	cfg.Codec = "lz4"
	var m, err = Build(cfg, 1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), x, y))

	var dir = t.TempDir()
	require.NoError(t, m.Save(dir))

	restored, err := LoadModel(dir, cfg)
	require.NoError(t, err)

	want, err := m.Predict(x)
	require.NoError(t, err)
	got, err := restored.Predict(x)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestCheckpoints(t *testing.T) {
	var x, y = linearData(100, 6)
	var cfg = testConfig()
	cfg.Epochs = 3
	cfg.CheckpointDir = t.TempDir()
	var m, err = Build(cfg, 1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), x, y))

	matches, err := filepath.Glob(filepath.Join(cfg.CheckpointDir, "n-01-*.nn"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
