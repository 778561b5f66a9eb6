package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventsync/internal/cache"
	"eventsync/internal/classifier"
	"eventsync/internal/client"
	"eventsync/internal/client/eventbrite"
	"eventsync/internal/client/renderproxy"
	"eventsync/internal/config"
	"eventsync/internal/db"
	"eventsync/internal/kafka"
	"eventsync/internal/metrics"
	gormrepository "eventsync/internal/repository/gorm"
	"eventsync/internal/service"
	"eventsync/internal/source"
	"eventsync/internal/telemetry"
)

// App holds everything a process needs to run cycles and sweeps.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       *db.DB
	Store    *gormrepository.Store
	Metrics  *metrics.Pipeline
	Hub      *service.ReportHub
	Settings *service.SystemSettingsService
	Sweeper  *service.SweepService
	Pipeline *service.PipelineService

	closers []func(context.Context) error
}

// LoadConfig reads ES_CONFIG (default config/config.yaml). ES_ENV_ONLY=true
// skips the file and reads only ES_* variables.
func LoadConfig() (config.Config, error) {
	cfgPath := os.Getenv("ES_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("ES_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	return config.Load(cfgPath, envOnly)
}

// New opens the database, migrates, and wires adapters and services. The
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	a.DB = dbConn
	a.closers = append(a.closers, func(context.Context) error { return db.Close(dbConn) })
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	a.Store = gormrepository.New(dbConn.Gorm)

	a.Settings = &service.SystemSettingsService{Repo: a.Store}
	if err := a.Settings.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default feature switches failed", zap.Error(err))
	}

	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		logger.Warn("cache unavailable, falling back to memory", zap.Error(err))
		store = cache.NewMemoryStore()
	}
	if c, isCloser := store.(interface{ Close() error }); isCloser {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	adapters, err := buildAdapters(cfg, logger, store)
	if err != nil {
		return nil, err
	}

	a.Metrics = metrics.New()
	a.Hub = service.NewReportHub()
	a.Sweeper = &service.SweepService{
		Store:   a.Store,
		Metrics: a.Metrics,
		Logger:  logger.Named("sweeper"),
	}
	a.Pipeline = &service.PipelineService{
		Adapters: adapters,
		Reconciler: &service.ReconcileService{
			Store:  a.Store,
			Logger: logger.Named("reconciler"),
		},
		Sweeper:        a.Sweeper,
		States:         a.Store,
		Settings:       a.Settings,
		Metrics:        a.Metrics,
		Hub:            a.Hub,
		Logger:         logger.Named("pipeline"),
		AdapterTimeout: cfg.Pipeline.AdapterTimeout,
		CycleTimeout:   cfg.Pipeline.CycleTimeout,
		BaseCtx:        ctx,
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Pipeline.Publisher = producer
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
		logger.Info("cycle reports published to kafka", zap.String("topic", cfg.Kafka.Topic))
	}

	ok = true
	return a, nil
}

func buildAdapters(cfg config.Config, logger *zap.Logger, store cache.Store) ([]source.Adapter, error) {
	loc, err := time.LoadLocation(cfg.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("pipeline timezone %q: %w", cfg.Pipeline.Timezone, err)
	}

	proxyTimeout := cfg.RenderProxy.Timeout
	if proxyTimeout <= 0 {
		proxyTimeout = 90 * time.Second
	}
	proxy := renderproxy.NewClient(client.NewHTTPClient(proxyTimeout), renderproxy.Options{
		BaseURL:     cfg.RenderProxy.BaseURL,
		APIKey:      cfg.RenderProxy.APIKey,
		Render:      cfg.RenderProxy.Render,
		KeepHeaders: cfg.RenderProxy.KeepHeaders,
		Retries:     cfg.RenderProxy.Retries,
	})
	api := eventbrite.NewClient(client.NewHTTPClient(cfg.Eventbrite.Timeout), eventbrite.Options{
		BaseURL:  cfg.Eventbrite.BaseURL,
		Token:    cfg.Eventbrite.Token,
		Cache:    cache.Prefixed{Store: store, Prefix: "eventbrite:"},
		CacheTTL: cfg.Eventbrite.CacheTTL,
		Retries:  cfg.Eventbrite.Retries,
	})
	if !api.Enabled() {
		logger.Info("eventbrite api token not set, listing cards only")
	}

	loaders := source.Loaders{
		Direct:  source.DirectLoader{UserAgent: cfg.Browser.UserAgent},
		Proxy:   source.ProxyLoader{Client: proxy},
		Browser: source.BrowserLoader{Config: cfg.Browser},
	}
	deps := source.Deps{
		Classifier: classifier.New(classifier.DefaultTaxonomy()),
		Images:     source.DefaultImagePicker(),
		Logger:     logger,
		Location:   loc,
	}
	enrich := source.EnrichOptions{
		Workers:     cfg.Eventbrite.Workers,
		CallTimeout: cfg.Eventbrite.CallTimeout,
		Reserve:     cfg.Eventbrite.Reserve,
	}
	return source.Build(cfg.Sources, deps, loaders, api, enrich)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
