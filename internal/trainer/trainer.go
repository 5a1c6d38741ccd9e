package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/ml"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

type EpochStats struct {
	Epoch          int
	TrainLoss      float64
	ValidationLoss float64
	Coverage       float64
	Width          float64
	Duration       time.Duration
}

type IEpochObserver interface {
	ObserveEpoch(stats EpochStats)
}

type threadData struct {
	wGradients []ml.Matrix
	bGradients []ml.Matrix
	neurons    [][]Neuron
}

type Trainer struct {
	model      *Model
	rnd        *rand.Rand
	training   []Sample
	validation []Sample
	cost       ml.IBatchCost
	adam       *ml.Adam
	wGradients []ml.Gradients
	bGradients []ml.Gradients
	threadData []threadData
}

func NewTrainer(model *Model, samples []Sample) (*Trainer, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty training set", piven.ErrIncompatibleShape)
	}
	var cfg = model.cfg
	var t = &Trainer{
		model: model,
		rnd:   rand.New(rand.NewSource(cfg.Seed)),
		cost:  &pivenCost{loss: model.loss},
		adam:  ml.NewAdam(cfg.LearningRate),
	}

	var dataset = make([]Sample, len(samples))
	copy(dataset, samples)
	t.shuffle(dataset)
	var validationSize = int(cfg.ValidationRatio * float64(len(dataset)))
	if validationSize > 0 && validationSize < len(dataset) {
		t.validation = dataset[:validationSize]
		t.training = dataset[validationSize:]
	} else {
		t.training = dataset
		t.validation = dataset
	}

	var layerSize = len(model.weights)
	t.wGradients = make([]ml.Gradients, layerSize)
	t.bGradients = make([]ml.Gradients, layerSize)
	for layerIndex := 0; layerIndex < layerSize; layerIndex++ {
		var w = &model.weights[layerIndex]
		t.wGradients[layerIndex] = ml.NewGradients(w.Rows, w.Cols)
		t.bGradients[layerIndex] = ml.NewGradients(w.Rows, 1)
	}
	t.threadData = make([]threadData, cfg.Threads)
	for threadIndex := range t.threadData {
		var td = &t.threadData[threadIndex]
		td.wGradients = make([]ml.Matrix, layerSize)
		td.bGradients = make([]ml.Matrix, layerSize)
		for layerIndex := 0; layerIndex < layerSize; layerIndex++ {
			var w = &model.weights[layerIndex]
			td.wGradients[layerIndex] = ml.NewMatrix(w.Rows, w.Cols)
			td.bGradients[layerIndex] = ml.NewMatrix(w.Rows, 1)
		}
		td.neurons = model.newNeurons()
	}
	return t, nil
}

// Train runs all epochs and leaves the model with the weights of the epoch
// with the lowest validation loss.
func (t *Trainer) Train(ctx context.Context) error {
	var m = t.model
	var logger = m.logger
	logger.Info("Train started",
		zap.Int("training", len(t.training)),
		zap.Int("validation", len(t.validation)),
		zap.Ints("topology", m.topology),
		zap.Float64("lambda", m.cfg.Lambda),
		zap.Float64("soften", m.cfg.Soften),
		zap.Float64("alpha", m.cfg.Alpha))
	defer logger.Info("Train finished")

	m.initWeights(t.rnd, targetsOf(t.training))

	var bestValidationCost = math.Inf(1)
	var bestEpoch int
	var bestWeights, bestBiases []ml.Matrix

	for epoch := 1; epoch <= m.cfg.Epochs; epoch++ {
		var start = time.Now()
		trainCost, err := t.startEpoch(ctx)
		if err != nil {
			return err
		}
		var stats, verr = t.validate()
		if verr != nil {
			return verr
		}
		stats.Epoch = epoch
		stats.TrainLoss = trainCost
		stats.Duration = time.Since(start)
		logger.Debug("Finished epoch",
			zap.Int("epoch", epoch),
			zap.Float64("trainLoss", stats.TrainLoss),
			zap.Float64("validationLoss", stats.ValidationLoss),
			zap.Float64("coverage", stats.Coverage),
			zap.Float64("width", stats.Width))
		for _, o := range m.observers {
			o.ObserveEpoch(stats)
		}

		if bestEpoch == 0 || stats.ValidationLoss < bestValidationCost {
			bestEpoch = epoch
			bestValidationCost = stats.ValidationLoss
			bestWeights = cloneMatrices(m.weights)
			bestBiases = cloneMatrices(m.biases)
			if m.cfg.CheckpointDir != "" {
				if err := t.saveNetwork(epoch, stats.ValidationLoss); err != nil {
					return err
				}
			}
		}
	}

	if bestWeights != nil {
		copyMatrices(m.weights, bestWeights)
		copyMatrices(m.biases, bestBiases)
	}
	logger.Info("Best validation cost",
		zap.Float64("cost", bestValidationCost),
		zap.Int("epoch", bestEpoch))
	return nil
}

func (t *Trainer) saveNetwork(epoch int, validationCost float64) error {
	var codec, err = compress.ParseType(t.model.cfg.Codec)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(t.model.cfg.CheckpointDir, os.ModePerm); err != nil {
		return err
	}
	var valCostInt = int(100000 * validationCost)
	var path = filepath.Join(t.model.cfg.CheckpointDir, fmt.Sprintf("n-%02d-%v.nn", epoch, valCostInt))
	if err = t.model.Network().Save(path, codec); err != nil {
		return err
	}
	t.model.logger.Debug("Stored network", zap.String("path", path))
	return nil
}

func (t *Trainer) shuffle(samples []Sample) {
	t.rnd.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
}

func (t *Trainer) startEpoch(ctx context.Context) (float64, error) {
	t.shuffle(t.training)
	var batchSize = t.model.cfg.BatchSize
	var totalCost float64
	var batches int
	for i := 0; i < len(t.training); i += batchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var end = min(i+batchSize, len(t.training))
		var cost, err = t.trainBatch(t.training[i:end])
		if err != nil {
			return 0, err
		}
		totalCost += cost
		batches++
	}
	return totalCost / float64(batches), nil
}

func (t *Trainer) forwardSamples(samples []Sample) *mat.Dense {
	return t.model.forwardRows(len(samples), len(t.threadData), func(i int, buf []float64) []float64 {
		return samples[i].Input
	})
}

// trainBatch scores the whole batch first, since coverage couples the
// examples, and then back-propagates the per-example output gradients.
func (t *Trainer) trainBatch(batch []Sample) (float64, error) {
	var raw = t.forwardSamples(batch)
	var grad = mat.NewDense(len(batch), piven.Channels, nil)
	var cost, err = t.cost.CostGradient(targetsOf(batch), raw, grad)
	if err != nil {
		return 0, err
	}

	var index int32 = -1
	var g errgroup.Group
	for i := range t.threadData {
		var td = &t.threadData[i]
		g.Go(func() error {
			for layerIndex := range td.wGradients {
				td.wGradients[layerIndex].Reset()
				td.bGradients[layerIndex].Reset()
			}
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(batch) {
					break
				}
				var sample = &batch[i]
				t.model.forward(td.neurons, sample.Input)
				t.model.backward(td.neurons, sample.Input, grad.RawRowView(i), td.wGradients, td.bGradients)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return 0, err
	}
	t.applyGradients()
	return cost, nil
}

func (t *Trainer) applyGradients() {
	var m = t.model
	for layerIndex := range m.weights {
		for threadIndex := range t.threadData {
			t.wGradients[layerIndex].AddMatrix(&t.threadData[threadIndex].wGradients[layerIndex])
			t.bGradients[layerIndex].AddMatrix(&t.threadData[threadIndex].bGradients[layerIndex])
		}
		t.wGradients[layerIndex].Apply(&m.weights[layerIndex], t.adam)
		t.bGradients[layerIndex].Apply(&m.biases[layerIndex], t.adam)
	}
}

func (t *Trainer) validate() (EpochStats, error) {
	var raw = t.forwardSamples(t.validation)
	var targets = targetsOf(t.validation)
	var cost, err = t.cost.Cost(targets, raw)
	if err != nil {
		return EpochStats{}, err
	}
	o, err := piven.SplitRaw(raw)
	if err != nil {
		return EpochStats{}, err
	}
	return EpochStats{
		ValidationLoss: cost,
		Coverage:       piven.Coverage(targets, o.Lower, o.Upper),
		Width:          piven.Width(o.Lower, o.Upper),
	}, nil
}

// Fit trains the model on the rows of x. y may be a single target column or
// the two-column form produced by piven.NormalizeTargets.
func (m *Model) Fit(ctx context.Context, x mat.Matrix, y mat.Matrix) error {
	var targets, err = piven.NormalizeTargets(y)
	if err != nil {
		return err
	}
	var rows, cols = x.Dims()
	var targetRows, _ = targets.Dims()
	if rows != targetRows {
		return fmt.Errorf("%w: %v feature rows, %v target rows", piven.ErrIncompatibleShape, rows, targetRows)
	}
	if cols != m.Inputs() {
		return fmt.Errorf("%w: %v features, model expects %v", piven.ErrIncompatibleShape, cols, m.Inputs())
	}
	trainer, err := NewTrainer(m, SamplesFromMatrix(x, piven.TargetColumn(targets)))
	if err != nil {
		return err
	}
	return trainer.Train(ctx)
}

func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		if len(x) == 1 {
			return x[0], 1
		}
		return 0, 1
	}
	var mean, std = stat.MeanStdDev(x, nil)
	if std == 0 {
		std = 1
	}
	return mean, std
}

func cloneMatrices(src []ml.Matrix) []ml.Matrix {
	var res = make([]ml.Matrix, len(src))
	for i := range src {
		res[i] = src[i].Clone()
	}
	return res
}

func copyMatrices(dst, src []ml.Matrix) {
	for i := range dst {
		copy(dst[i].Data, src[i].Data)
	}
}
