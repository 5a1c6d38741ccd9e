package piven

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NormalizeTargets brings training targets to the two-column form (y, y).
// A single column is replicated, two columns are returned unchanged.
func NormalizeTargets(y mat.Matrix) (*mat.Dense, error) {
	var rows, cols = y.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty targets", ErrIncompatibleShape)
	}
	switch cols {
	case 1:
		var res = mat.NewDense(rows, 2, nil)
		for i := 0; i < rows; i++ {
			var v = y.At(i, 0)
			res.Set(i, 0, v)
			res.Set(i, 1, v)
		}
		return res, nil
	case 2:
		if d, ok := y.(*mat.Dense); ok {
			return d, nil
		}
		return mat.DenseCopyOf(y), nil
	}
	return nil, fmt.Errorf("%w: targets with %v columns", ErrIncompatibleShape, cols)
}

// TargetVector wraps a flat target slice as a single-column matrix.
func TargetVector(y []float64) (mat.Matrix, error) {
	if len(y) == 0 {
		return nil, fmt.Errorf("%w: empty targets", ErrIncompatibleShape)
	}
	return mat.NewVecDense(len(y), y), nil
}

// TargetColumn returns the training target of normalized targets.
func TargetColumn(y *mat.Dense) []float64 {
	var rows, _ = y.Dims()
	return mat.Col(make([]float64, rows), 0, y)
}
