// Package config holds the settings of a training run.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"

	"github.com/ChizhovVadim/piven/internal/trainer"
)

type Config struct {
	trainer.Config `yaml:",inline"`

	Data      string  `yaml:"data"`
	Target    string  `yaml:"target"`
	OutputDir string  `yaml:"output_dir"`
	LogLevel  string  `yaml:"log_level"`
	TestRatio float64 `yaml:"test_ratio"`
}

// Overrides captures CLI supplied values. Zero values leave the config untouched.
type Overrides struct {
	Data      string
	Target    string
	OutputDir string
	LogLevel  string
	Lambda    float64
	Epochs    int
	Threads   int
	Codec     string
}

func Default() *Config {
	var cfg = &Config{
		Config:    trainer.DefaultConfig(),
		Target:    "y",
		OutputDir: "runs",
		LogLevel:  "info",
		TestRatio: 0.2,
	}
	cfg.Threads = DefaultThreads()
	return cfg
}

// DefaultThreads is the number of logical cores of the host.
func DefaultThreads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg = Default()
	var dec = yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) ApplyOverrides(o Overrides) {
	if o.Data != "" {
		c.Data = o.Data
	}
	if o.Target != "" {
		c.Target = o.Target
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.Lambda > 0 {
		c.Lambda = o.Lambda
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.Threads > 0 {
		c.Threads = o.Threads
	}
	if o.Codec != "" {
		c.Codec = strings.ToLower(o.Codec)
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Data == "" {
		return errors.New("data must be set")
	}
	if c.Target == "" {
		return errors.New("target must be set")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must be set")
	}
	if c.TestRatio < 0 || c.TestRatio >= 1 {
		return fmt.Errorf("test_ratio must be in [0,1) (got %v)", c.TestRatio)
	}
	return nil
}
