package cli

import (
	"context"
	"time"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/config"
)

// connectBus loads config (applying --bus-url/--stream-name overrides) and
// dials the bus. Every client command shares this path (spec §6
// "Environment": bus endpoint injected as configuration).
func connectBus() (bus.Bus, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if busURL != "" {
		cfg.Bus.URL = busURL
	}
	if streamName != "" {
		cfg.Bus.StreamName = streamName
	}

	requestTimeout := bus.DefaultRequestTimeout
	if cfg.Bus.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.Bus.RequestTimeout); err == nil {
			requestTimeout = d
		}
	}

	return bus.NewNATS(bus.NATSConfig{
		URL:            cfg.Bus.URL,
		StreamName:     cfg.Bus.StreamName,
		RequestTimeout: requestTimeout,
	})
}

// cliTimeout bounds one-shot client RPCs issued by commands below.
const cliTimeout = 10 * time.Second

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cliTimeout)
}
