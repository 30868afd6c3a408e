// Package mapbox implements reverse geocoding over the Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// IsAvailable reports whether an access token is configured.
func (c *Client) IsAvailable() bool {
	return c.token != ""
}

// ReverseGeocode converts coordinates to at most maxResults addresses, best
// match first. No match is an empty slice and a nil error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64, maxResults int) ([]domain.Address, error) {
	if maxResults < 1 {
		maxResults = 1
	}

	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(maxResults)},
	}
	// Mapbox rejects limit>1 on reverse queries unless a single type is set.
	if maxResults > 1 {
		params.Set("types", "address")
	}

	start := time.Now()
	features, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	addresses := make([]domain.Address, 0, len(features))
	for _, f := range features {
		addresses = append(addresses, f.toAddress())
	}
	return addresses, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("mapbox reverse geocode", "features", len(mapboxResp.Features))
	return mapboxResp.Features, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string        `json:"id"`
	Center    []float64     `json:"center"` // [lon, lat]
	PlaceName string        `json:"place_name"`
	Text      string        `json:"text"`
	Relevance float64       `json:"relevance"`
	Context   []contextItem `json:"context"`
}

// contextItem is one enclosing feature, e.g. {"id": "region.123", "text": "California"}.
type contextItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (f feature) toAddress() domain.Address {
	addr := domain.Address{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		addr.Lon = f.Center[0]
		addr.Lat = f.Center[1]
	}

	// The feature itself may be the locality/region/country.
	items := append([]contextItem{{ID: f.ID, Text: f.Text}}, f.Context...)
	for _, item := range items {
		kind, _, _ := strings.Cut(item.ID, ".")
		switch kind {
		case "place", "locality":
			if addr.Locality == "" {
				addr.Locality = item.Text
			}
		case "region":
			addr.Region = item.Text
		case "country":
			addr.Country = item.Text
		case "postcode":
			addr.Postcode = item.Text
		}
	}
	return addr
}
