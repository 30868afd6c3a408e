// Package gnss implements the location platform on top of a GNSS receiver:
// a serial NMEA device, a recorded NMEA file, or a simulated track.
package gnss

import (
	"context"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
)

// Receiver is a source of raw fixes.
type Receiver interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	// Read returns the latest fix, or nil when the receiver has none yet.
	// May block briefly.
	Read(ctx context.Context) (*domain.Fix, error)
}
