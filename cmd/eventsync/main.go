package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eventsync/internal/app"
	cronrunner "eventsync/internal/cron"
	"eventsync/internal/handler"
	"eventsync/internal/logger"
	"eventsync/internal/service"

	_ "eventsync/docs"
)

func main() {
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
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = a.Metrics.Handler()
	}
	engine := handler.NewRouter(metricsHandler, cfg.Metrics.Path,
		&handler.HealthHandler{DB: a.DB},
		&handler.PipelineHandler{
			Pipeline: a.Pipeline,
			Sweeper:  a.Sweeper,
			Hub:      a.Hub,
			Logger:   logger.Named("api"),
		},
		&handler.EventsHandler{Repo: a.Store, Logger: logger.Named("api")},
		&handler.SettingsHandler{Settings: a.Settings},
	)

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Cron.SweepOnStart {
		if _, err := a.Sweeper.Sweep(ctx, time.Now().UTC()); err != nil {
			logger.Warn("startup sweep failed", zap.Error(err))
		}
	}

	if cfg.Cron.Enabled {
		runner := cronrunner.New(logger, ctx)
		if _, err := runner.Add("pipeline_cycle", cfg.Cron.RunCycle, func(ctx context.Context) {
			if !a.Settings.IsEnabled(ctx, service.FeaturePipelineCron, true) {
				logger.Info("pipeline cycle skipped: switch off")
				return
			}
			a.Pipeline.RunCycle(ctx, service.TriggerCron)
		}); err != nil {
			logger.Fatal("cron add pipeline_cycle failed", zap.Error(err))
		}
		if _, err := runner.Add("sweep", cfg.Cron.Sweep, func(ctx context.Context) {
			if !a.Settings.IsEnabled(ctx, service.FeatureSweepCron, true) {
				logger.Info("sweep skipped: switch off")
				return
			}
			if _, err := a.Sweeper.Sweep(ctx, time.Now().UTC()); err != nil {
				logger.Warn("scheduled sweep failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("cron add sweep failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		a.Pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("background cycle still running at shutdown")
	}
}
