package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"go.uber.org/zap"

	"github.com/ChizhovVadim/piven/internal/config"
	"github.com/ChizhovVadim/piven/internal/dataset"
	"github.com/ChizhovVadim/piven/internal/estimator"
	"github.com/ChizhovVadim/piven/internal/logging"
	"github.com/ChizhovVadim/piven/internal/monitoring"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

const (
	configFile     = "config.yaml"
	promFile       = "metrics.prom"
	checkpointsDir = "checkpoints"
)

func loadTrainConfig(params *CommandArgs) (*config.Config, error) {
	var cfg = config.Default()
	if path := params.GetString("config", ""); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	var o = config.Overrides{
		Data:      params.GetString("data", ""),
		Target:    params.GetString("target", ""),
		OutputDir: params.GetString("out", ""),
		LogLevel:  params.GetString("log", ""),
		Codec:     params.GetString("codec", ""),
	}
	var err error
	if o.Lambda, err = params.GetFloat("lambda", 0); err != nil {
		return nil, err
	}
	if o.Epochs, err = params.GetInt("epochs", 0); err != nil {
		return nil, err
	}
	if o.Threads, err = params.GetInt("threads", 0); err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(o)
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(params *CommandArgs, level string) (*zap.Logger, error) {
	var dev, err = params.GetBool("dev", false)
	if err != nil {
		return nil, err
	}
	return logging.New(level, dev)
}

func runTrain(ctx context.Context, params *CommandArgs) error {
	var cfg, err = loadTrainConfig(params)
	if err != nil {
		return err
	}
	checkpoints, err := params.GetBool("checkpoints", false)
	if err != nil {
		return err
	}
	logger, err := newLogger(params, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var runID = uuid.NewString()
	var runDir = filepath.Join(cfg.OutputDir, runID)
	if err = os.MkdirAll(runDir, os.ModePerm); err != nil {
		return err
	}
	if checkpoints {
		cfg.CheckpointDir = filepath.Join(runDir, checkpointsDir)
	}
	logger = logger.With(zap.String("run", runID))
	logger.Info("Host",
		zap.String("cpu", cpuid.CPU.BrandName),
		zap.Int("logicalCores", cpuid.CPU.LogicalCores),
		zap.Int("threads", cfg.Threads))
	if err = cfg.Save(filepath.Join(runDir, configFile)); err != nil {
		return err
	}

	var loader = &dataset.CSVLoader{
		TargetColumn: cfg.Target,
		Threads:      cfg.Threads,
		Logger:       logger,
	}
	ds, err := loader.LoadFile(ctx, cfg.Data)
	if err != nil {
		return err
	}
	var training, test = ds, ds
	if cfg.TestRatio > 0 {
		training, test, err = ds.Split(cfg.TestRatio, cfg.Seed)
		if err != nil {
			return err
		}
	}

	var metrics = monitoring.NewTrainingMetrics(runID)
	est, err := estimator.New(cfg.Config,
		estimator.WithLogger(logger),
		estimator.WithObserver(metrics))
	if err != nil {
		return err
	}
	yTrain, err := piven.TargetVector(training.Y)
	if err != nil {
		return err
	}
	if err = est.Fit(ctx, training.X, yTrain); err != nil {
		return err
	}

	yTest, err := piven.TargetVector(test.Y)
	if err != nil {
		return err
	}
	result, err := est.Log(runDir, test.X, yTest, estimator.LogOptions{Model: true, Predictions: true})
	if err != nil {
		return err
	}
	metrics.ObserveEvaluation(result)
	if err = metrics.WriteTextfile(filepath.Join(runDir, promFile)); err != nil {
		return err
	}
	logger.Info("Test metrics",
		zap.Float64("loss", result.Loss),
		zap.Float64("mae", result.MAE),
		zap.Float64("rmse", result.RMSE),
		zap.Float64("coverage", result.Coverage),
		zap.Float64("piWidth", result.PIWidth),
		zap.String("dir", runDir))
	return nil
}
