package piven

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Column order of the raw output head.
const (
	ChannelUpper  = 0
	ChannelLower  = 1
	ChannelWeight = 2
	Channels      = 3
)

// Output is the raw model output split into named channels.
// Weight is expected in (0,1).
type Output struct {
	Upper  []float64
	Lower  []float64
	Weight []float64
}

// Prediction is what callers see: the point estimate and the interval around it.
// Lower <= Upper is not enforced.
type Prediction struct {
	Point []float64
	Lower []float64
	Upper []float64
}

func (o Output) Len() int {
	return len(o.Upper)
}

func (o Output) validate() error {
	if len(o.Lower) != len(o.Upper) || len(o.Weight) != len(o.Upper) {
		return fmt.Errorf("%w: channel lengths %v, %v, %v",
			ErrIncompatibleShape, len(o.Upper), len(o.Lower), len(o.Weight))
	}
	return nil
}

// SplitRaw reads an N×3 raw output matrix into named channels.
func SplitRaw(raw mat.Matrix) (Output, error) {
	var rows, cols = raw.Dims()
	if cols != Channels {
		return Output{}, fmt.Errorf("%w: raw output has %v columns, want %v",
			ErrIncompatibleShape, cols, Channels)
	}
	var o = Output{
		Upper:  make([]float64, rows),
		Lower:  make([]float64, rows),
		Weight: make([]float64, rows),
	}
	mat.Col(o.Upper, ChannelUpper, raw)
	mat.Col(o.Lower, ChannelLower, raw)
	mat.Col(o.Weight, ChannelWeight, raw)
	return o, nil
}

// Raw packs the channels back into an N×3 matrix.
func (o Output) Raw() *mat.Dense {
	if o.Len() == 0 {
		return &mat.Dense{}
	}
	var raw = mat.NewDense(o.Len(), Channels, nil)
	raw.SetCol(ChannelUpper, o.Upper)
	raw.SetCol(ChannelLower, o.Lower)
	raw.SetCol(ChannelWeight, o.Weight)
	return raw
}

func BlendValue(upper, lower, weight float64) float64 {
	return weight*upper + (1-weight)*lower
}

// Point returns only the blended point estimate.
func (o Output) Point() []float64 {
	var point = make([]float64, o.Len())
	for i := range point {
		point[i] = BlendValue(o.Upper[i], o.Lower[i], o.Weight[i])
	}
	return point
}

// Blend returns the point estimate with the interval bounds unchanged.
func Blend(o Output) Prediction {
	return Prediction{
		Point: o.Point(),
		Lower: o.Lower,
		Upper: o.Upper,
	}
}

func (p Prediction) Len() int {
	return len(p.Point)
}

func (p Prediction) validate() error {
	if len(p.Lower) != len(p.Point) || len(p.Upper) != len(p.Point) {
		return fmt.Errorf("%w: prediction lengths %v, %v, %v",
			ErrIncompatibleShape, len(p.Point), len(p.Lower), len(p.Upper))
	}
	return nil
}
