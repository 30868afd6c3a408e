package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/location-orchestrator/internal/config"
	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UnknownCommand(t *testing.T) {
	err := run(context.Background(), &config.Config{}, "teleport", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestRun_BadFlags(t *testing.T) {
	err := run(context.Background(), &config.Config{}, "stream", []string{"-count", "many"})
	require.Error(t, err)
}

func TestFanOut_DeliversInOrder(t *testing.T) {
	var got []string
	sink := fanOut(
		func(f domain.Fix) { got = append(got, "first:"+f.Provider) },
		func(f domain.Fix) { got = append(got, "second:"+f.Provider) },
	)

	sink(domain.Fix{Provider: "gps"})
	sink(domain.Fix{Provider: "demo"})

	assert.Equal(t, []string{"first:gps", "second:gps", "first:demo", "second:demo"}, got)
}

func TestNewReceiver(t *testing.T) {
	logger := discardLogger()

	tests := []struct {
		source  string
		name    string
		wantNil bool
		wantErr bool
	}{
		{source: "demo", name: "demo"},
		{source: "replay", name: "replay:track.nmea"},
		{source: "nmea", name: "nmea:/dev/ttyUSB0"},
		{source: "none", wantNil: true},
		{source: "carrier-pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cfg := &config.Config{GPSSource: tt.source, GPSPort: "/dev/ttyUSB0", GPSReplayFile: "track.nmea"}
			r, err := newReceiver(cfg, clockwork.NewFakeClock(), logger)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, r)
				return
			}
			assert.Equal(t, tt.name, r.Name())
		})
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
