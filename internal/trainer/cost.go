package trainer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ChizhovVadim/piven/internal/ml"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

type pivenCost struct {
	loss *piven.Loss
}

var _ ml.IBatchCost = (*pivenCost)(nil)

func (c *pivenCost) Cost(targets []float64, outputs *mat.Dense) (float64, error) {
	var o, err = piven.SplitRaw(outputs)
	if err != nil {
		return 0, err
	}
	terms, err := c.loss.Evaluate(targets, o)
	if err != nil {
		return 0, err
	}
	return terms.Total, nil
}

func (c *pivenCost) CostGradient(targets []float64, outputs *mat.Dense, grad *mat.Dense) (float64, error) {
	var o, err = piven.SplitRaw(outputs)
	if err != nil {
		return 0, err
	}
	terms, g, err := c.loss.Gradient(targets, o)
	if err != nil {
		return 0, err
	}
	grad.SetCol(piven.ChannelUpper, g.Upper)
	grad.SetCol(piven.ChannelLower, g.Lower)
	grad.SetCol(piven.ChannelWeight, g.Weight)
	return terms.Total, nil
}
