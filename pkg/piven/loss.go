package piven

import (
	"fmt"

	"github.com/ChizhovVadim/piven/pkg/autodiff"
)

// captureEps keeps the captured width finite when no point is inside its interval.
const captureEps = 0.001

// Loss is the PIVEN training objective. It is safe for concurrent use.
type Loss struct {
	params Params
}

// Terms are the additive parts of the loss for one batch.
type Terms struct {
	Width        float64
	Coverage     float64
	Point        float64
	SoftCoverage float64
	Total        float64
}

// Nodes are the tape nodes of one loss evaluation.
type Nodes struct {
	Width        *autodiff.Node
	Coverage     *autodiff.Node
	Point        *autodiff.Node
	SoftCoverage *autodiff.Node
	Total        *autodiff.Node
}

func NewLoss(params Params) (*Loss, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Loss{params: params}, nil
}

func (l *Loss) Params() Params {
	return l.params
}

// Graph records the loss on tape. point is the blended point estimate; for
// training it must itself be built on the tape from the raw channels so that
// gradients flow through the blend.
func (l *Loss) Graph(tape *autodiff.Tape, yTrue, upper, lower, point *autodiff.Node) Nodes {
	var p = l.params
	var n = float64(yTrue.Len())

	var pointErr = autodiff.Mean(autodiff.Square(autodiff.Sub(yTrue, point)))

	var kUpper = autodiff.Sigmoid(autodiff.Scale(autodiff.Sub(upper, yTrue), p.Soften))
	var kLower = autodiff.Sigmoid(autodiff.Scale(autodiff.Sub(yTrue, lower), p.Soften))
	var k = autodiff.Mul(kUpper, kLower)

	var captured = autodiff.Sum(autodiff.Mul(autodiff.Abs(autodiff.Sub(upper, lower)), k))
	var width = autodiff.Div(captured, autodiff.Shift(autodiff.Sum(k), captureEps))

	var picp = autodiff.Mean(k)
	var shortfall = autodiff.ClampMin0(autodiff.Sub(tape.Constant(1-p.Alpha), picp))
	var coverage = autodiff.Scale(autodiff.Square(shortfall), n/(p.Alpha*(1-p.Alpha)))

	var total = autodiff.Add(autodiff.Add(width, autodiff.Scale(coverage, p.Lambda)), pointErr)

	return Nodes{
		Width:        width,
		Coverage:     coverage,
		Point:        pointErr,
		SoftCoverage: picp,
		Total:        total,
	}
}

// BlendGraph records point = weight*upper + (1-weight)*lower.
func BlendGraph(tape *autodiff.Tape, upper, lower, weight *autodiff.Node) *autodiff.Node {
	return autodiff.Add(
		autodiff.Mul(weight, upper),
		autodiff.Mul(autodiff.Sub(tape.Constant(1), weight), lower))
}

// Evaluate scores raw model output against targets.
func (l *Loss) Evaluate(yTrue []float64, o Output) (Terms, error) {
	var terms, _, err = l.run(yTrue, o, false)
	return terms, err
}

// Gradient scores raw model output and returns dLoss/dchannel for every example.
func (l *Loss) Gradient(yTrue []float64, o Output) (Terms, Output, error) {
	return l.run(yTrue, o, true)
}

func (l *Loss) run(yTrue []float64, o Output, backward bool) (Terms, Output, error) {
	if err := o.validate(); err != nil {
		return Terms{}, Output{}, err
	}
	if err := checkBatch(len(yTrue), o.Len()); err != nil {
		return Terms{}, Output{}, err
	}
	var tape = autodiff.NewTape()
	var y = tape.Variable(yTrue)
	var upper = tape.Variable(o.Upper)
	var lower = tape.Variable(o.Lower)
	var weight = tape.Variable(o.Weight)
	var nodes = l.Graph(tape, y, upper, lower, BlendGraph(tape, upper, lower, weight))
	var terms = nodes.terms()
	if !backward {
		return terms, Output{}, nil
	}
	tape.Backward(nodes.Total)
	return terms, Output{
		Upper:  upper.Grad,
		Lower:  lower.Grad,
		Weight: weight.Grad,
	}, nil
}

// Score evaluates the loss for an already blended prediction.
func (l *Loss) Score(yTrue []float64, p Prediction) (Terms, error) {
	if err := p.validate(); err != nil {
		return Terms{}, err
	}
	if err := checkBatch(len(yTrue), p.Len()); err != nil {
		return Terms{}, err
	}
	var tape = autodiff.NewTape()
	var nodes = l.Graph(tape,
		tape.Constant(yTrue...),
		tape.Constant(p.Upper...),
		tape.Constant(p.Lower...),
		tape.Constant(p.Point...))
	return nodes.terms(), nil
}

func (n Nodes) terms() Terms {
	return Terms{
		Width:        n.Width.Scalar(),
		Coverage:     n.Coverage.Scalar(),
		Point:        n.Point.Scalar(),
		SoftCoverage: n.SoftCoverage.Scalar(),
		Total:        n.Total.Scalar(),
	}
}

func checkBatch(targets, outputs int) error {
	if targets == 0 {
		return fmt.Errorf("%w: empty batch", ErrIncompatibleShape)
	}
	if targets != outputs {
		return fmt.Errorf("%w: %v targets for %v outputs", ErrIncompatibleShape, targets, outputs)
	}
	return nil
}
