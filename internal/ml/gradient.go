package ml

import "math"

// Adam holds the optimizer settings shared by every gradient of a model.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
}

func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
	}
}

type Gradient struct {
	Value float64
	M1    float64
	M2    float64
}

type Gradients struct {
	Data []Gradient
	Rows int
	Cols int
}

func (g *Gradient) Calculate(opt *Adam) float64 {

	if g.Value == 0 {
		// nothing to calculate
		return 0
	}

	g.M1 = g.M1*opt.Beta1 + g.Value*(1-opt.Beta1)
	g.M2 = g.M2*opt.Beta2 + (g.Value*g.Value)*(1-opt.Beta2)

	return opt.LearningRate * g.M1 / (math.Sqrt(g.M2) + 1e-8)
}

func NewGradients(rows, cols int) Gradients {
	return Gradients{
		Data: make([]Gradient, cols*rows),
		Rows: rows,
		Cols: cols,
	}
}

func (g *Gradients) Add(row, col int, delta float64) {
	g.Data[col*g.Rows+row].Value += delta
}

func (g *Gradients) AddMatrix(m *Matrix) {
	for i := range g.Data {
		g.Data[i].Value += m.Data[i]
	}
}

func (g *Gradients) Apply(m *Matrix, opt *Adam) {
	for i := range g.Data {
		m.Data[i] -= g.Data[i].Calculate(opt)
		g.Data[i].Value = 0
	}
}
