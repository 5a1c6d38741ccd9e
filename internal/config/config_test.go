package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChizhovVadim/piven/pkg/piven"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	var path = filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	var path = writeConfig(t, `
data: train.csv
target: price
lambda: 20
alpha: 0.1
hidden: [32, 16]
activation: tanh
epochs: 7
codec: lz4
`)
	var cfg, err = Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "train.csv", cfg.Data)
	assert.Equal(t, "price", cfg.Target)
	assert.Equal(t, 20.0, cfg.Lambda)
	assert.Equal(t, 0.1, cfg.Alpha)
	assert.Equal(t, piven.DefaultSoften, cfg.Soften)
	assert.Equal(t, []int{32, 16}, cfg.Hidden)
	assert.Equal(t, "tanh", cfg.Activation)
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, "lz4", cfg.Codec)
	assert.Equal(t, "runs", cfg.OutputDir)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	var _, err = Load(writeConfig(t, "lamda: 3\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyOverrides(t *testing.T) {
	var cfg = Default()
	cfg.ApplyOverrides(Overrides{Data: "a.csv", Lambda: 3, Epochs: 9, Threads: 4, Codec: "NONE"})
	assert.Equal(t, "a.csv", cfg.Data)
	assert.Equal(t, 3.0, cfg.Lambda)
	assert.Equal(t, 9, cfg.Epochs)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, "none", cfg.Codec)
	assert.Equal(t, "y", cfg.Target)
}

func TestValidate(t *testing.T) {
	var cfg = Default()
	require.Error(t, cfg.Validate())

	cfg.Data = "a.csv"
	require.NoError(t, cfg.Validate())

	cfg.Alpha = 2
	require.ErrorIs(t, cfg.Validate(), piven.ErrInvalidHyperparameter)

	cfg = Default()
	cfg.Data = "a.csv"
	cfg.TestRatio = 1
	require.Error(t, cfg.Validate())

	var nilConfig *Config
	require.Error(t, nilConfig.Validate())
}

func TestSaveLoad(t *testing.T) {
	var cfg = Default()
	cfg.Data = "b.csv"
	cfg.Hidden = []int{5, 3}
	cfg.CheckpointDir = "ckpt"
	var path = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Positive(t, DefaultThreads())
}
