package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Synthetic generates y = x*sin(x) + noise with noise growing in |x|,
// x uniform in [-3,3].
func Synthetic(n int, seed int64) (*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("synthetic dataset size %v must be positive", n)
	}
	var rnd = rand.New(rand.NewSource(seed))
	var ds = &Dataset{
		Columns: []string{"x"},
		X:       mat.NewDense(n, 1, nil),
		Y:       make([]float64, n),
	}
	for i := 0; i < n; i++ {
		var x = rnd.Float64()*6 - 3
		ds.X.Set(i, 0, x)
		ds.Y[i] = x*math.Sin(x) + rnd.NormFloat64()*(0.1+0.15*math.Abs(x))
	}
	return ds, nil
}
