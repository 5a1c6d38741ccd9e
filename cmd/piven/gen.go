package main

import (
	"os"

	"github.com/ChizhovVadim/piven/internal/dataset"
)

func runGenerate(params *CommandArgs) error {
	var path = params.GetString("out", "synthetic.csv")
	var n, err = params.GetInt("n", 2000)
	if err != nil {
		return err
	}
	seed, err := params.GetInt("seed", 1)
	if err != nil {
		return err
	}
	ds, err := dataset.Synthetic(n, int64(seed))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = ds.WriteCSV(f, params.GetString("target", "y")); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
