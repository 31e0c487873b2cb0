package main

import (
	"context"

	"github.com/ankalabs/pulse/cmd/pulse/helper"
	"github.com/ankalabs/pulse/pkg/config"
	"github.com/ankalabs/pulse/pkg/logutils"
)

func main() {
	if err := helper.LoadDebugEnvironment(); err != nil {
		logutils.Log.Warnf("no debug env loaded: %s", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logutils.Log.Fatalf("load config: %s", err)
	}

	rt, err := helper.InitializeRuntime(cfg)
	if err != nil {
		logutils.Log.Fatalf("initialize runtime: %s", err)
	}

	runner := helper.NewServerRunner(rt)
	if err := runner.StartRuntime(context.Background()); err != nil {
		logutils.Log.Fatalf("start runtime: %s", err)
	}
	runner.StartMetricsServer()
	runner.StartServer()
}
