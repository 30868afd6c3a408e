package domain

import (
	"context"
	"strings"
)

// Address contains place data returned by a geocoding provider.
type Address struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	FormattedAddress string  `json:"formatted_address"`
	PlaceName        string  `json:"place_name,omitempty"`
	Locality         string  `json:"locality,omitempty"`
	Region           string  `json:"region,omitempty"`
	Country          string  `json:"country,omitempty"`
	Postcode         string  `json:"postcode,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"` // 0.0–1.0 provider confidence score
}

// Summary renders "<region>, <country>", falling back to the formatted address.
func (a Address) Summary() string {
	parts := make([]string, 0, 2)
	if a.Region != "" {
		parts = append(parts, a.Region)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	if len(parts) == 0 {
		return a.FormattedAddress
	}
	return strings.Join(parts, ", ")
}

// Geocoder turns coordinates into addresses.
type Geocoder interface {
	// IsAvailable reports whether a backend is present and configured.
	IsAvailable() bool

	// ReverseGeocode returns up to maxResults addresses, best match first.
	// It may block on network I/O.
	ReverseGeocode(ctx context.Context, lat, lon float64, maxResults int) ([]Address, error)
}
