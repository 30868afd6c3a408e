package gnss

import (
	"context"
	"math"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	// DemoLatitude and DemoLongitude are the centre of the simulated track.
	DemoLatitude  = 37.4219
	DemoLongitude = -122.0840

	demoRadius = 0.002 // degrees, roughly 200 m
	demoPeriod = 10 * time.Minute
)

// DemoReceiver simulates a receiver circling a fixed point.
type DemoReceiver struct {
	clock clockwork.Clock
	start time.Time
}

// NewDemo creates a simulated receiver driven by clock.
func NewDemo(clock clockwork.Clock) *DemoReceiver {
	return &DemoReceiver{clock: clock, start: clock.Now()}
}

func (d *DemoReceiver) Name() string                  { return "demo" }
func (d *DemoReceiver) Connect(context.Context) error { return nil }
func (d *DemoReceiver) Close() error                  { return nil }

func (d *DemoReceiver) Read(context.Context) (*domain.Fix, error) {
	now := d.clock.Now()
	angle := 2 * math.Pi * float64(now.Sub(d.start)) / float64(demoPeriod)

	return &domain.Fix{
		Latitude:   DemoLatitude + demoRadius*math.Sin(angle),
		Longitude:  DemoLongitude + demoRadius*math.Cos(angle),
		Timestamp:  now.UTC(),
		Accuracy:   4,
		Provider:   "demo",
		Altitude:   32,
		Speed:      2 * math.Pi * 200 / demoPeriod.Hours() / 1000,
		Heading:    math.Mod(math.Mod(-angle*180/math.Pi, 360)+360, 360),
		Satellites: 12,
	}, nil
}
