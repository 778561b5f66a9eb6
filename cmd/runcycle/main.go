// Command runcycle runs one ingestion cycle, or only the sweeper, and prints
// the report as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"eventsync/internal/app"
	"eventsync/internal/logger"
	"eventsync/internal/service"
)

func main() {
	sweepOnly := flag.Bool("sweep-only", false, "delete expired events and exit")
	flag.Parse()
	os.Exit(run(*sweepOnly))
}

func run(sweepOnly bool) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := logger.New(cfg.App, cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return 1
	}
	defer a.Close(context.Background())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if sweepOnly {
		res, err := a.Sweeper.Sweep(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
			return 1
		}
		_ = enc.Encode(res)
		return 0
	}

	report := a.Pipeline.RunCycle(ctx, service.TriggerCLI)
	_ = enc.Encode(report)
	if report.Error != "" {
		return 1
	}
	return 0
}
