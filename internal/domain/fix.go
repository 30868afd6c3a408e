package domain

import "time"

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Fix is a single location reading obtained from the platform.
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy_m"` // estimated horizontal radius
	Provider  string    `json:"provider"`

	// Pass-through extras, zero when the receiver does not report them.
	Altitude   float64 `json:"altitude_m,omitempty"`
	Speed      float64 `json:"speed_kmh,omitempty"`
	Heading    float64 `json:"heading_deg,omitempty"`
	Satellites int     `json:"satellites,omitempty"`
}

// Coordinates returns the position part of the fix.
func (f Fix) Coordinates() Coordinates {
	return Coordinates{Latitude: f.Latitude, Longitude: f.Longitude}
}

// FixListener receives streamed fixes. Implementations must be comparable
// (pointer receivers) because the platform keys registrations by listener.
type FixListener interface {
	OnFix(Fix)
}
