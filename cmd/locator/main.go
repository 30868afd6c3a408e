// Command locator acquires device location through the settings-checked
// orchestrator and exposes it on the command line or over HTTP.
//
// Usage:
//
//	locator once [-address]
//	locator stream [-count N]
//	locator address -lat 37.4219 -lon -122.0840
//	locator settings
//	locator serve
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/location-orchestrator/internal/config"
)

const usage = `usage: locator <command> [flags]

commands:
  once      print the current fix
  stream    print fixes as they arrive until interrupted
  address   reverse geocode -lat/-lon
  settings  check (and resolve) location settings
  serve     run the HTTP API and websocket fix feed
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		slog.Error("locator failed", "command", os.Args[1], "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	switch command {
	case "once":
		return runOnce(ctx, cfg, args)
	case "stream":
		return runStream(ctx, cfg, args)
	case "address":
		return runAddress(ctx, cfg, args)
	case "settings":
		return runSettings(ctx, cfg, args)
	case "serve":
		return runServe(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
