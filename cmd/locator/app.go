package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/location-orchestrator/internal/adapter/gnss"
	"github.com/couchcryptid/location-orchestrator/internal/adapter/mapbox"
	"github.com/couchcryptid/location-orchestrator/internal/adapter/prompt"
	"github.com/couchcryptid/location-orchestrator/internal/address"
	"github.com/couchcryptid/location-orchestrator/internal/config"
	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/locator"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
	"github.com/couchcryptid/location-orchestrator/internal/registry"
	"github.com/couchcryptid/location-orchestrator/internal/settings"
	"github.com/couchcryptid/location-orchestrator/internal/stream"
	"github.com/jonboulle/clockwork"
)

const connectAttempts = 5

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	device   *gnss.Device
	registry *registry.Registry
	orch     *locator.Orchestrator
	resolver *address.Resolver
}

// newApp builds the location stack. ui answers settings resolutions.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, ui domain.ResolutionUI) (*app, error) {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	receiver, err := newReceiver(cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	if receiver != nil {
		if err := gnss.Connect(ctx, receiver, connectAttempts, logger); err != nil {
			return nil, err
		}
	}
	mode, err := gnss.ParseMode(cfg.GPSMode)
	if err != nil {
		return nil, err
	}
	device := gnss.NewDevice(receiver, mode, clock, logger)

	reg := registry.New(device, logger)
	sub := stream.New(logger, metrics)
	reg.Attach(sub)

	orch := locator.New(reg,
		settings.NewGate(reg, logger, metrics),
		settings.NewBridge(ui, logger, metrics),
		sub, logger, metrics,
		locator.WithStateObserver(func(s locator.State) {
			logger.Debug("locator state", "state", s.String())
		}),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		device:   device,
		registry: reg,
		orch:     orch,
		resolver: address.NewResolver(newGeocoder(cfg, logger, metrics), logger, metrics),
	}, nil
}

func newReceiver(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (gnss.Receiver, error) {
	switch cfg.GPSSource {
	case "demo":
		return gnss.NewDemo(clock), nil
	case "nmea":
		return gnss.NewNMEA(gnss.NMEAConfig{PortPath: cfg.GPSPort, BaudRate: cfg.GPSBaudRate}, logger), nil
	case "replay":
		return gnss.NewReplay(cfg.GPSReplayFile, logger), nil
	case "none":
		logger.Warn("no location receiver configured")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown GPS_SOURCE %q", cfg.GPSSource)
	}
}

// newGeocoder returns the Mapbox geocoder when enabled, nil otherwise.
func newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.MapboxEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	metrics.GeocodeEnabled.Set(1)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

// newCLIApp wires the stack for interactive commands: logs on stderr,
// results on stdout, resolution per RESOLUTION_POLICY.
func newCLIApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ui, err := prompt.New(cfg.ResolutionPolicy, os.Stdin, os.Stderr, logger)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger, ui)
}

func (a *app) close() {
	a.orch.Stop()
	if err := a.device.Close(); err != nil {
		a.logger.Error("gnss device close error", "error", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
