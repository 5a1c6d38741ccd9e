package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a feature matrix with one regression target per row.
type Dataset struct {
	Columns []string
	X       *mat.Dense
	Y       []float64
}

func (d *Dataset) Len() int {
	return len(d.Y)
}

// Split returns the first len*ratio rows (after a seeded shuffle) as the
// second result and the remaining rows as the first.
func (d *Dataset) Split(ratio float64, seed int64) (*Dataset, *Dataset, error) {
	var n = d.Len()
	var testSize = int(ratio * float64(n))
	if testSize <= 0 || testSize >= n {
		return nil, nil, fmt.Errorf("split ratio %v leaves an empty part of %v rows", ratio, n)
	}
	var perm = rand.New(rand.NewSource(seed)).Perm(n)
	return d.subset(perm[testSize:]), d.subset(perm[:testSize]), nil
}

func (d *Dataset) subset(rows []int) *Dataset {
	var _, cols = d.X.Dims()
	var res = &Dataset{
		Columns: d.Columns,
		X:       mat.NewDense(len(rows), cols, nil),
		Y:       make([]float64, len(rows)),
	}
	for i, r := range rows {
		res.X.SetRow(i, d.X.RawRowView(r))
		res.Y[i] = d.Y[r]
	}
	return res
}
