// Package estimator wraps a PIVEN model with a fit / predict / score /
// persist lifecycle.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/report"
	"github.com/ChizhovVadim/piven/internal/storage"
	"github.com/ChizhovVadim/piven/internal/trainer"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

const ModelDir = "model"

var ErrNotFitted = errors.New("estimator: model is not fitted")

type Estimator struct {
	cfg       trainer.Config
	loss      *piven.Loss
	logger    *zap.Logger
	observers []trainer.IEpochObserver
	model     *trainer.Model
}

type Option func(*Estimator)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

func WithObserver(o trainer.IEpochObserver) Option {
	return func(e *Estimator) {
		e.observers = append(e.observers, o)
	}
}

// LogOptions select the optional artifacts written by Log. PredictionsCodec
// compresses predictions.csv and appends the codec extension to its name.
type LogOptions struct {
	Model            bool
	Predictions      bool
	PredictionsCodec compress.Type
}

func New(cfg trainer.Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var loss, err = piven.NewLoss(cfg.Params)
	if err != nil {
		return nil, err
	}
	var e = &Estimator{
		cfg:    cfg,
		loss:   loss,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Estimator) Config() trainer.Config {
	return e.cfg
}

func (e *Estimator) Fitted() bool {
	return e.model != nil
}

func (e *Estimator) modelOptions() []trainer.Option {
	var opts = []trainer.Option{trainer.WithLogger(e.logger)}
	for _, o := range e.observers {
		opts = append(opts, trainer.WithObserver(o))
	}
	return opts
}

// Fit builds a fresh network for the width of x and trains it. A failed Fit
// leaves a previously fitted model in place.
func (e *Estimator) Fit(ctx context.Context, x, y mat.Matrix) error {
	var _, inputs = x.Dims()
	var model, err = trainer.Build(e.cfg, inputs, e.modelOptions()...)
	if err != nil {
		return err
	}
	if err = model.Fit(ctx, x, y); err != nil {
		return err
	}
	e.model = model
	return nil
}

func (e *Estimator) Predict(x mat.Matrix) (piven.Prediction, error) {
	if e.model == nil {
		return piven.Prediction{}, ErrNotFitted
	}
	var raw, err = e.model.Predict(x)
	if err != nil {
		return piven.Prediction{}, err
	}
	o, err := piven.SplitRaw(raw)
	if err != nil {
		return piven.Prediction{}, err
	}
	return piven.Blend(o), nil
}

func (e *Estimator) PredictPoint(x mat.Matrix) ([]float64, error) {
	var p, err = e.Predict(x)
	if err != nil {
		return nil, err
	}
	return p.Point, nil
}

func (e *Estimator) Score(yTrue []float64, p piven.Prediction) (report.Metrics, error) {
	return report.Score(e.loss, yTrue, p)
}

// Save writes the experiment parameters and the network into dir.
func (e *Estimator) Save(dir string) error {
	if e.model == nil {
		return ErrNotFitted
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	if err := storage.SaveParams(dir, e.cfg); err != nil {
		return err
	}
	if err := e.model.Save(dir); err != nil {
		return err
	}
	e.logger.Info("Saved model", zap.String("dir", dir))
	return nil
}

// LoadConfig reads the experiment parameters saved in dir. Missing soften
// and alpha take their defaults.
func LoadConfig(dir string) (trainer.Config, error) {
	var cfg trainer.Config
	if err := storage.LoadParams(dir, &cfg); err != nil {
		return trainer.Config{}, err
	}
	cfg.Params = cfg.Params.WithDefaults()
	return cfg, nil
}

// Load restores an estimator written by Save.
func Load(dir string, opts ...Option) (*Estimator, error) {
	var cfg, err = LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("experiment params in %v: %w", dir, err)
	}
	e.model, err = trainer.LoadModel(dir, cfg, e.modelOptions()...)
	if err != nil {
		return nil, err
	}
	e.cfg = e.model.Config()
	return e, nil
}

// Log scores the model on (x, y) and writes metrics.json into dir, plus the
// model and predictions.csv when requested. dir must already exist.
func (e *Estimator) Log(dir string, x, y mat.Matrix, opts LogOptions) (report.Metrics, error) {
	if e.model == nil {
		return report.Metrics{}, ErrNotFitted
	}
	if info, err := os.Stat(dir); err != nil {
		return report.Metrics{}, err
	} else if !info.IsDir() {
		return report.Metrics{}, fmt.Errorf("%v is not a directory", dir)
	}
	var targets, err = piven.NormalizeTargets(y)
	if err != nil {
		return report.Metrics{}, err
	}
	var yTrue = piven.TargetColumn(targets)
	p, err := e.Predict(x)
	if err != nil {
		return report.Metrics{}, err
	}
	metrics, err := e.Score(yTrue, p)
	if err != nil {
		return report.Metrics{}, err
	}
	if err = report.WriteMetrics(filepath.Join(dir, report.MetricsFile), metrics); err != nil {
		return report.Metrics{}, err
	}
	if opts.Model {
		if err = e.Save(filepath.Join(dir, ModelDir)); err != nil {
			return report.Metrics{}, err
		}
	}
	if opts.Predictions {
		var path = filepath.Join(dir, report.PredictionsFile)
		if _, err = report.WritePredictionsFile(path, opts.PredictionsCodec, yTrue, p); err != nil {
			return report.Metrics{}, err
		}
	}
	e.logger.Info("Logged experiment",
		zap.String("dir", dir),
		zap.Stringer("metrics", metrics))
	return metrics, nil
}
