package telemetry

import (
	"context"
	"testing"

	"eventsync/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	for _, cfg := range []config.TelemetryConfig{
		{Enabled: false, Endpoint: "localhost:4318"},
		{Enabled: true, Endpoint: " "},
	} {
		shutdown, err := Setup(context.Background(), cfg)
		if err != nil {
			t.Fatalf("setup(%+v): %v", cfg, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}
