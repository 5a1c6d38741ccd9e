package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	ParamsFile  = "experiment_params.json"
	NetworkFile = "network.nn"
)

// SaveParams writes v as the experiment parameters of dir.
func SaveParams(dir string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode experiment params")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, ParamsFile), data, 0o644), "write experiment params")
}

// LoadParams reads the experiment parameters of dir into v. A missing file
// yields an error matching os.ErrNotExist.
func LoadParams(dir string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, ParamsFile))
	if err != nil {
		return errors.Wrapf(err, "no experiment file found in %v", dir)
	}
	return errors.Wrap(json.Unmarshal(data, v), "decode experiment params")
}
