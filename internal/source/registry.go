package source

import (
	"fmt"

	"go.uber.org/zap"

	"eventsync/internal/config"
)

// Build returns the enabled adapters in a fixed order. Each adapter gets the
// loader its source config asks for.
func Build(cfg config.SourcesConfig, deps Deps, loaders Loaders, api DetailAPI, enrich EnrichOptions) ([]Adapter, error) {
	type entry struct {
		name string
		cfg  config.SourceConfig
		make func(config.SourceConfig, Deps) Adapter
	}
	entries := []entry{
		{SourceEventbrite, cfg.Eventbrite, func(c config.SourceConfig, d Deps) Adapter {
			return &Eventbrite{Config: c, Deps: d, API: api, Enrich: enrich}
		}},
		{SourceMeetup, cfg.Meetup, func(c config.SourceConfig, d Deps) Adapter {
			return &Meetup{Config: c, Deps: d}
		}},
		{SourceAllEvents, cfg.AllEvents, func(c config.SourceConfig, d Deps) Adapter {
			return &AllEvents{Config: c, Deps: d}
		}},
		{SourceTradeCentre, cfg.TradeCentre, func(c config.SourceConfig, d Deps) Adapter {
			return &TradeCentre{Config: c, Deps: d}
		}},
	}

	out := make([]Adapter, 0, len(entries))
	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		if e.cfg.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", e.name)
		}
		loader, err := loaders.For(e.cfg.Loader)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", e.name, err)
		}
		d := deps
		d.Loader = loader
		d.Logger = deps.logger().Named("adapter." + e.name)
		out = append(out, e.make(e.cfg, d))
		deps.logger().Info("adapter enabled",
			zap.String("source", e.name),
			zap.String("loader", e.cfg.Loader),
		)
	}
	return out, nil
}
