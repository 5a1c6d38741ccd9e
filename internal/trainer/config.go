package trainer

import (
	"fmt"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/ml"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

// Config is everything needed to build and train a model. It is persisted
// next to the network as the experiment parameters, except CheckpointDir,
// which belongs to a single run.
type Config struct {
	piven.Params `yaml:",inline"`

	Hidden          []int   `json:"hidden" yaml:"hidden"`
	Activation      string  `json:"activation" yaml:"activation"`
	Epochs          int     `json:"epochs" yaml:"epochs"`
	BatchSize       int     `json:"batch_size" yaml:"batch_size"`
	Threads         int     `json:"threads" yaml:"threads"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	Seed            int64   `json:"seed" yaml:"seed"`
	ValidationRatio float64 `json:"validation_ratio" yaml:"validation_ratio"`
	Codec           string  `json:"codec" yaml:"codec"`
	CheckpointDir   string  `json:"-" yaml:"checkpoint_dir"`
}

func DefaultConfig() Config {
	return Config{
		Params:          piven.NewParams(15),
		Hidden:          []int{64},
		Activation:      "relu",
		Epochs:          100,
		BatchSize:       100,
		Threads:         1,
		LearningRate:    0.001,
		Seed:            1,
		ValidationRatio: 0.2,
		Codec:           "zstd",
	}
}

func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("hidden layer size %v must be positive", h)
		}
	}
	if _, err := ml.ActivationByName(c.Activation); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs %v must be positive", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size %v must be positive", c.BatchSize)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("threads %v must be positive", c.Threads)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning rate %v must be positive", c.LearningRate)
	}
	if c.ValidationRatio < 0 || c.ValidationRatio >= 1 {
		return fmt.Errorf("validation ratio %v must be in [0,1)", c.ValidationRatio)
	}
	if _, err := compress.ParseType(c.Codec); err != nil {
		return err
	}
	return nil
}
