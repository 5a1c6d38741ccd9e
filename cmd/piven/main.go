package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	var ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	var err = run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var params = NewCommandArgs(args)
	var handler = NewCommandHandler()
	handler.Add("train", func() error {
		return runTrain(ctx, params)
	})
	handler.Add("predict", func() error {
		return runPredict(ctx, params)
	})
	handler.Add("gen", func() error {
		return runGenerate(params)
	})
	return handler.Execute(params.CommandName())
}
