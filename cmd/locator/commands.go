package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	httpadapter "github.com/couchcryptid/location-orchestrator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/location-orchestrator/internal/adapter/kafka"
	"github.com/couchcryptid/location-orchestrator/internal/adapter/prompt"
	"github.com/couchcryptid/location-orchestrator/internal/config"
	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

const publishTimeout = 5 * time.Second

type fixOutput struct {
	domain.Fix
	Address string `json:"address,omitempty"`
}

func runOnce(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("once", flag.ContinueOnError)
	withAddress := fs.Bool("address", false, "also reverse geocode the fix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newCLIApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	fix, err := a.orch.RequestOnce(ctx)
	if err != nil {
		return err
	}

	out := fixOutput{Fix: fix}
	if *withAddress {
		addr, err := a.resolver.Resolve(ctx, fix.Coordinates())
		switch {
		case err == nil:
			out.Address = addr.Summary()
		case errors.Is(err, domain.ErrGeocoderUnavailable), errors.Is(err, domain.ErrNoAddressFound):
			a.logger.Warn("address unavailable", "error", err)
		default:
			return err
		}
	}
	return printJSON(os.Stdout, out)
}

func runStream(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	count := fs.Int("count", 0, "stop after N fixes (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newCLIApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sinks := []func(domain.Fix){}
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewFixPublisher(cfg, a.logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				a.logger.Error("kafka publisher close error", "error", err)
			}
		}()
		sinks = append(sinks, publisher.Sink(publishTimeout))
	}

	fixes := make(chan domain.Fix, 16)
	sinks = append(sinks, func(f domain.Fix) {
		select {
		case fixes <- f:
		default:
			a.logger.Warn("stream output lagging, fix dropped")
		}
	})

	if err := a.orch.RequestStream(ctx, fanOut(sinks...)); err != nil {
		return err
	}
	a.logger.Info("streaming location", "interval", a.registry.GetAcquisitionRequest().Interval())

	for n := 0; *count == 0 || n < *count; n++ {
		select {
		case <-ctx.Done():
			// The owner went away: release the platform registration.
			a.orch.Stop()
			return nil
		case f := <-fixes:
			if err := printJSON(os.Stdout, f); err != nil {
				return err
			}
		}
	}
	a.orch.Stop()
	return nil
}

func runAddress(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	lat := fs.Float64("lat", 0, "latitude in decimal degrees")
	lon := fs.Float64("lon", 0, "longitude in decimal degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newCLIApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	addr, err := a.resolver.Resolve(ctx, domain.Coordinates{Latitude: *lat, Longitude: *lon})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, struct {
		domain.Address
		Summary string `json:"summary"`
	}{addr, addr.Summary()})
}

func runSettings(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newCLIApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.orch.CheckSettings(ctx)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, map[string]any{
		"mode":            a.device.Mode().String(),
		"location_usable": resp.LocationUsable,
		"gps_usable":      resp.GPSUsable,
		"network_usable":  resp.NetworkUsable,
	})
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// Nobody is at a terminal to answer prompts in serve mode.
	ui := prompt.Decline(logger)
	if cfg.ResolutionPolicy == "accept" {
		ui = prompt.Accept(logger)
	} else if cfg.ResolutionPolicy == "prompt" {
		logger.Warn("RESOLUTION_POLICY=prompt is not interactive in serve mode, declining")
	}

	a, err := newApp(ctx, cfg, logger, ui)
	if err != nil {
		return err
	}
	defer a.close()

	hub := httpadapter.NewHub(logger)
	sinks := []func(domain.Fix){hub.Broadcast}

	var publisher *kafkaadapter.FixPublisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewFixPublisher(cfg, logger)
		sinks = append(sinks, publisher.Sink(publishTimeout))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.orch, a.resolver, hub, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the fix stream feeding websocket clients (and Kafka).
	if err := a.orch.RequestStream(ctx, fanOut(sinks...)); err != nil {
		logger.Error("fix stream not started", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	a.orch.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// fanOut delivers each fix to every sink in order.
func fanOut(sinks ...func(domain.Fix)) func(domain.Fix) {
	return func(f domain.Fix) {
		for _, sink := range sinks {
			sink(f)
		}
	}
}
