package trainer

import (
	"gonum.org/v1/gonum/mat"
)

type Sample struct {
	Input  []float64
	Target float64
}

// SamplesFromMatrix builds samples from the rows of x and the targets y.
func SamplesFromMatrix(x mat.Matrix, y []float64) []Sample {
	var rows, cols = x.Dims()
	var samples = make([]Sample, rows)
	for i := range samples {
		samples[i] = Sample{
			Input:  mat.Row(make([]float64, cols), i, x),
			Target: y[i],
		}
	}
	return samples
}

func targetsOf(samples []Sample) []float64 {
	var res = make([]float64, len(samples))
	for i := range samples {
		res[i] = samples[i].Target
	}
	return res
}
