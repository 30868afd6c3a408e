//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 37.4219, -122.0840, 1)
	require.NoError(t, err)
	require.NotEmpty(t, result)

	assert.NotEmpty(t, result[0].FormattedAddress)
	assert.Equal(t, "California", result[0].Region)
	assert.Equal(t, "United States", result[0].Country)
	assert.Greater(t, result[0].Confidence, 0.0)
}

func TestSmoke_ReverseGeocode_Ocean(t *testing.T) {
	c := smokeClient(t)

	// Mid-Pacific: Mapbox may or may not return a feature, either is fine.
	_, err := c.ReverseGeocode(context.Background(), 0, -150, 1)
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 32.7767, -96.7970, 1)
	require.NoError(t, err)
	require.NotEmpty(t, r1)

	r2, err := cached.ReverseGeocode(context.Background(), 32.7767, -96.7970, 1)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
