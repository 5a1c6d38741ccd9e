package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/internal/dataset"
	"github.com/ChizhovVadim/piven/internal/estimator"
	"github.com/ChizhovVadim/piven/internal/report"
)

func runPredict(ctx context.Context, params *CommandArgs) error {
	var (
		modelDir = params.GetString("model", "")
		dataPath = params.GetString("data", "")
		outPath  = params.GetString("out", report.PredictionsFile)
		target   = params.GetString("target", "")
	)
	codec, err := compress.ParseType(params.GetString("codec", "none"))
	if err != nil {
		return err
	}
	if modelDir == "" || dataPath == "" {
		return errors.New("predict requires -model and -data")
	}
	logger, err := newLogger(params, params.GetString("log", "info"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	est, err := estimator.Load(modelDir, estimator.WithLogger(logger))
	if err != nil {
		return err
	}
	var loader = &dataset.CSVLoader{
		TargetColumn: target,
		Threads:      est.Config().Threads,
		Logger:       logger,
	}
	ds, err := loader.LoadFile(ctx, dataPath)
	if err != nil {
		return err
	}
	p, err := est.Predict(ds.X)
	if err != nil {
		return err
	}
	if ds.Y != nil {
		metrics, err := est.Score(ds.Y, p)
		if err != nil {
			return err
		}
		logger.Info("Scored predictions", zap.Stringer("metrics", metrics))
	}
	path, err := report.WritePredictionsFile(outPath, codec, ds.Y, p)
	if err != nil {
		return err
	}
	logger.Info("Wrote predictions", zap.Int("rows", p.Len()), zap.String("path", path))
	return nil
}
