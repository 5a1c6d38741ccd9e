package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/ml"
	"github.com/ChizhovVadim/piven/internal/storage"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

type Neuron struct {
	A, E, Prime float64
}

// Model is a fully connected network with a PIVEN head: the output layer has
// three neurons (upper, lower, weight) with identity, identity and sigmoid activations.
type Model struct {
	cfg         Config
	topology    []int
	activations []ml.IActivationFn
	head        [piven.Channels]ml.IActivationFn
	weights     []ml.Matrix
	biases      []ml.Matrix
	loss        *piven.Loss
	logger      *zap.Logger
	observers   []IEpochObserver
}

type Option func(*Model)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

func WithObserver(o IEpochObserver) Option {
	return func(m *Model) {
		m.observers = append(m.observers, o)
	}
}

// Build creates an untrained model for inputs features.
func Build(cfg Config, inputs int, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inputs <= 0 {
		return nil, fmt.Errorf("%w: %v input features", piven.ErrIncompatibleShape, inputs)
	}
	var loss, err = piven.NewLoss(cfg.Params)
	if err != nil {
		return nil, err
	}
	var m = &Model{
		cfg:    cfg,
		loss:   loss,
		logger: zap.NewNop(),
	}
	m.topology = append(append([]int{inputs}, cfg.Hidden...), piven.Channels)
	var layerSize = len(m.topology) - 1
	m.activations = make([]ml.IActivationFn, layerSize)
	m.weights = make([]ml.Matrix, layerSize)
	m.biases = make([]ml.Matrix, layerSize)
	for layerIndex := 0; layerIndex < layerSize; layerIndex++ {
		m.activations[layerIndex], _ = ml.ActivationByName(cfg.Activation)
		var inputSize = m.topology[layerIndex]
		var outputSize = m.topology[layerIndex+1]
		m.weights[layerIndex] = ml.NewMatrix(outputSize, inputSize)
		m.biases[layerIndex] = ml.NewMatrix(outputSize, 1)
	}
	m.head[piven.ChannelUpper] = &ml.IdentityActivation{}
	m.head[piven.ChannelLower] = &ml.IdentityActivation{}
	m.head[piven.ChannelWeight] = &ml.SigmoidActivation{}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewModelFromNetwork restores a trained model.
func NewModelFromNetwork(cfg Config, n *storage.Network, opts ...Option) (*Model, error) {
	if n.Topology.Outputs != piven.Channels {
		return nil, fmt.Errorf("%w: network has %v outputs", piven.ErrIncompatibleShape, n.Topology.Outputs)
	}
	cfg.Activation = n.Activation
	cfg.Hidden = cfg.Hidden[:0:0]
	for _, h := range n.Topology.HiddenNeurons {
		cfg.Hidden = append(cfg.Hidden, int(h))
	}
	var m, err = Build(cfg, int(n.Topology.Inputs), opts...)
	if err != nil {
		return nil, err
	}
	if len(n.Weights) != len(m.weights) || len(n.Biases) != len(m.biases) {
		return nil, fmt.Errorf("%w: network has %v layers", storage.ErrFormat, len(n.Weights))
	}
	for i := range m.weights {
		m.weights[i] = n.Weights[i].Clone()
		m.biases[i] = n.Biases[i].Clone()
	}
	return m, nil
}

func (m *Model) Config() Config {
	return m.cfg
}

func (m *Model) Inputs() int {
	return m.topology[0]
}

func (m *Model) initWeights(rnd *rand.Rand, targets []float64) {
	for layerIndex := range m.weights {
		var inputSize = m.topology[layerIndex]
		var max = 1 / math.Sqrt(float64(inputSize))
		ml.InitUniform(rnd, m.weights[layerIndex].Data, max)
		m.biases[layerIndex].Reset()
	}
	// Start with the interval mean±std of the targets and an even blend.
	var mean, std = meanStdDev(targets)
	var head = &m.biases[len(m.biases)-1]
	head.Data[piven.ChannelUpper] = mean + std
	head.Data[piven.ChannelLower] = mean - std
	head.Data[piven.ChannelWeight] = ml.ReverseSigmoid(0.5)
}

func (m *Model) newNeurons() [][]Neuron {
	var neurons = make([][]Neuron, len(m.weights))
	for layerIndex := range neurons {
		neurons[layerIndex] = make([]Neuron, m.topology[layerIndex+1])
	}
	return neurons
}

func (m *Model) forward(neurons [][]Neuron, input []float64) {
	var last = len(m.weights) - 1
	for layerIndex := range m.weights {
		var weights = &m.weights[layerIndex]
		var biases = &m.biases[layerIndex]
		var layerNeurons = neurons[layerIndex]
		for outputIndex := range layerNeurons {
			var x = biases.Data[outputIndex]
			if layerIndex == 0 {
				for inputIndex, v := range input {
					x += v * weights.Get(outputIndex, inputIndex)
				}
			} else {
				for inputIndex, prev := range neurons[layerIndex-1] {
					x += prev.A * weights.Get(outputIndex, inputIndex)
				}
			}
			var activation = m.activations[layerIndex]
			if layerIndex == last {
				activation = m.head[outputIndex]
			}
			var n = &layerNeurons[outputIndex]
			n.A = activation.Sigma(x)
			n.Prime = activation.SigmaPrime(x)
		}
	}
}

// backward expects forward to have been run for input; outputErr is
// d(cost)/d(output) of the three head neurons.
func (m *Model) backward(
	neurons [][]Neuron,
	input []float64,
	outputErr []float64,
	wGradients, bGradients []ml.Matrix,
) {
	// back propagation
	for layerIndex := len(m.weights) - 1; layerIndex >= 0; layerIndex-- {
		var layerNeurons = neurons[layerIndex]
		if layerIndex == len(m.weights)-1 {
			for i := range layerNeurons {
				layerNeurons[i].E = outputErr[i]
			}
		} else {
			var nextNeurons = neurons[layerIndex+1]
			var nextWeights = &m.weights[layerIndex+1]
			for i := range layerNeurons {
				layerNeurons[i].E = 0
			}
			for outputIndex := range nextNeurons {
				var n = &nextNeurons[outputIndex]
				var x = n.E * n.Prime
				for inputIndex := range layerNeurons {
					layerNeurons[inputIndex].E += nextWeights.Get(outputIndex, inputIndex) * x
				}
			}
		}

		var wg = &wGradients[layerIndex]
		var bg = &bGradients[layerIndex]
		for outputIndex := range layerNeurons {
			var n = &layerNeurons[outputIndex]
			var x = n.E * n.Prime
			bg.Data[outputIndex] += x
			if layerIndex == 0 {
				for inputIndex, v := range input {
					wg.Add(outputIndex, inputIndex, x*v)
				}
			} else {
				for inputIndex, prev := range neurons[layerIndex-1] {
					wg.Add(outputIndex, inputIndex, x*prev.A)
				}
			}
		}
	}
}

// forwardRows runs the network over n inputs with threads goroutines and
// returns the raw n×3 output.
func (m *Model) forwardRows(n, threads int, row func(i int, buf []float64) []float64) *mat.Dense {
	var raw = mat.NewDense(n, piven.Channels, nil)
	var index int32 = -1
	var g errgroup.Group
	for t := 0; t < threads; t++ {
		g.Go(func() error {
			var neurons = m.newNeurons()
			var buf = make([]float64, m.Inputs())
			var out = neurons[len(neurons)-1]
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= n {
					break
				}
				m.forward(neurons, row(i, buf))
				for c := range out {
					raw.Set(i, c, out[c].A)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return raw
}

// Predict returns the raw (upper, lower, weight) output for every row of x.
func (m *Model) Predict(x mat.Matrix) (*mat.Dense, error) {
	var rows, cols = x.Dims()
	if cols != m.Inputs() {
		return nil, fmt.Errorf("%w: %v features, model expects %v",
			piven.ErrIncompatibleShape, cols, m.Inputs())
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: no rows to predict", piven.ErrIncompatibleShape)
	}
	return m.forwardRows(rows, m.cfg.Threads, func(i int, buf []float64) []float64 {
		return mat.Row(buf, i, x)
	}), nil
}

func (m *Model) Network() *storage.Network {
	var hiddenNeurons = make([]uint32, len(m.topology)-2)
	for i := range hiddenNeurons {
		hiddenNeurons[i] = uint32(m.topology[i+1])
	}
	return &storage.Network{
		Id: 1,
		Topology: storage.Topology{
			Inputs:        uint32(m.topology[0]),
			HiddenNeurons: hiddenNeurons,
			Outputs:       uint32(m.topology[len(m.topology)-1]),
		},
		Activation: m.cfg.Activation,
		Weights:    m.weights,
		Biases:     m.biases,
	}
}

// Save writes the network into dir.
func (m *Model) Save(dir string) error {
	var codec, err = compress.ParseType(m.cfg.Codec)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	return m.Network().Save(filepath.Join(dir, storage.NetworkFile), codec)
}

// LoadModel reads the network saved by Save from dir.
func LoadModel(dir string, cfg Config, opts ...Option) (*Model, error) {
	var n, err = storage.LoadNetwork(filepath.Join(dir, storage.NetworkFile))
	if err != nil {
		return nil, err
	}
	return NewModelFromNetwork(cfg, n, opts...)
}
