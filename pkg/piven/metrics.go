package piven

import (
	"math"

	"github.com/ChizhovVadim/piven/pkg/autodiff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Coverage is the fraction of targets with low <= y <= high (PICP).
func Coverage(yTrue, low, high []float64) float64 {
	checkLengths(len(yTrue), len(low), len(high))
	if len(yTrue) == 0 {
		return math.NaN()
	}
	var inside int
	for i, y := range yTrue {
		if low[i] <= y && y <= high[i] {
			inside++
		}
	}
	return float64(inside) / float64(len(yTrue))
}

// Width is the mean interval width high-low (MPIW).
func Width(low, high []float64) float64 {
	checkLengths(len(low), len(high))
	if len(low) == 0 {
		return math.NaN()
	}
	var diff = make([]float64, len(high))
	floats.SubTo(diff, high, low)
	return stat.Mean(diff, nil)
}

// SoftCoverage is the smooth coverage the loss trains against. It approaches
// Coverage as soften grows.
func SoftCoverage(yTrue, low, high []float64, soften float64) float64 {
	checkLengths(len(yTrue), len(low), len(high))
	if len(yTrue) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, y := range yTrue {
		sum += autodiff.SigmoidValue(soften*(high[i]-y)) *
			autodiff.SigmoidValue(soften*(y-low[i]))
	}
	return sum / float64(len(yTrue))
}

func MAE(yTrue, yPred []float64) float64 {
	checkLengths(len(yTrue), len(yPred))
	if len(yTrue) == 0 {
		return math.NaN()
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue))
}

func RMSE(yTrue, yPred []float64) float64 {
	checkLengths(len(yTrue), len(yPred))
	if len(yTrue) == 0 {
		return math.NaN()
	}
	return floats.Distance(yTrue, yPred, 2) / math.Sqrt(float64(len(yTrue)))
}

func checkLengths(sizes ...int) {
	for _, size := range sizes[1:] {
		if size != sizes[0] {
			panic("piven: slice length mismatch")
		}
	}
}
