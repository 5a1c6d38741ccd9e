package ml

import "gonum.org/v1/gonum/mat"

// IBatchCost scores the raw outputs of a whole batch at once. CostGradient
// fills grad (same shape as outputs) with d(cost)/d(output).
type IBatchCost interface {
	Cost(targets []float64, outputs *mat.Dense) (float64, error)
	CostGradient(targets []float64, outputs *mat.Dense, grad *mat.Dense) (float64, error)
}
