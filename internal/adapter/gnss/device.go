package gnss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Mode is the device-wide location setting a user can change.
type Mode int

const (
	ModeOff Mode = iota
	ModeBatterySaving
	ModeHighAccuracy
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeBatterySaving:
		return "battery"
	case ModeHighAccuracy:
		return "high"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "off", "battery" or "high".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off":
		return ModeOff, nil
	case "battery":
		return ModeBatterySaving, nil
	case "high":
		return ModeHighAccuracy, nil
	default:
		return ModeOff, fmt.Errorf("unknown location mode %q", s)
	}
}

// requiredMode is the lowest mode that serves priority.
func requiredMode(p domain.Priority) Mode {
	if p == domain.PriorityHighAccuracy {
		return ModeHighAccuracy
	}
	return ModeBatterySaving
}

var (
	errNoReceiver     = errors.New("gnss: no location receiver configured")
	errReceiverSilent = errors.New("gnss: receiver silent")
)

// defaultReadTimeout bounds one receiver read so a silent receiver cannot
// hold up LastFix or an update tick.
const defaultReadTimeout = 2 * time.Second

// Device is the location platform backed by one receiver. It implements
// domain.Platform; the clients it hands out share its state.
type Device struct {
	receiver    Receiver
	clock       clockwork.Clock
	logger      *slog.Logger
	readTimeout time.Duration

	mu    sync.Mutex
	mode  Mode
	last  *domain.Fix
	loops map[domain.FixListener]*updateLoop
}

type updateLoop struct {
	cancel context.CancelFunc
	done   chan struct{}

	// delivering is set while the loop goroutine is inside OnFix.
	delivering atomic.Bool
}

// NewDevice creates a platform over receiver. A nil receiver models a
// device without location hardware: settings checks fail unresolvably.
func NewDevice(receiver Receiver, mode Mode, clock clockwork.Clock, logger *slog.Logger) *Device {
	return &Device{
		receiver:    receiver,
		clock:       clock,
		logger:      logger,
		readTimeout: defaultReadTimeout,
		mode:        mode,
		loops:       make(map[domain.FixListener]*updateLoop),
	}
}

func (d *Device) NewLocationClient() domain.LocationClient { return &locationClient{d: d} }
func (d *Device) NewSettingsClient() domain.SettingsClient { return &settingsClient{d: d} }

// Mode returns the current location mode.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetMode changes the location mode.
func (d *Device) SetMode(m Mode) {
	d.mu.Lock()
	prev := d.mode
	d.mode = m
	d.mu.Unlock()
	if prev != m {
		d.logger.Info("location mode changed", "from", prev.String(), "to", m.String())
	}
}

// Close stops every update loop and closes the receiver.
func (d *Device) Close() error {
	d.mu.Lock()
	loops := d.loops
	d.loops = make(map[domain.FixListener]*updateLoop)
	d.mu.Unlock()

	for _, l := range loops {
		l.cancel()
		<-l.done
	}
	if d.receiver == nil {
		return nil
	}
	return d.receiver.Close()
}

// read refreshes the cached fix from the receiver.
func (d *Device) read(ctx context.Context) (*domain.Fix, error) {
	readCtx, cancel := context.WithTimeout(ctx, d.readTimeout)
	defer cancel()

	fix, err := d.receiver.Read(readCtx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if fix != nil {
		cp := *fix
		d.last = &cp
	}
	return d.lastLocked(), nil
}

// cached returns a copy of the last known fix, or nil.
func (d *Device) cached() *domain.Fix {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLocked()
}

func (d *Device) lastLocked() *domain.Fix {
	if d.last == nil {
		return nil
	}
	cp := *d.last
	return &cp
}

// --- settings client ---

type settingsClient struct{ d *Device }

func (c *settingsClient) CheckSettings(ctx context.Context, req *domain.SettingsRequirement) (domain.SettingsResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.SettingsResponse{}, err
	}
	if c.d.receiver == nil {
		return domain.SettingsResponse{}, errNoReceiver
	}

	current := c.d.Mode()
	need := requiredMode(req.Priority())
	if current >= need {
		return domain.SettingsResponse{
			LocationUsable: current != ModeOff,
			GPSUsable:      current == ModeHighAccuracy,
			NetworkUsable:  current != ModeOff,
		}, nil
	}

	token := domain.NewResolutionToken(
		fmt.Sprintf("location mode is %s, %s needs %s", current, req.Priority(), need),
		func(context.Context) error {
			c.d.SetMode(need)
			return nil
		},
	)
	return domain.SettingsResponse{}, &domain.ResolvableError{
		Token: token,
		Err:   fmt.Errorf("location mode %s does not allow %s", current, req.Priority()),
	}
}

// --- location client ---

type locationClient struct{ d *Device }

// LastFix reads the receiver for a fresh fix. A read that times out while
// ctx is still live falls back to the last known fix.
func (c *locationClient) LastFix(ctx context.Context) (*domain.Fix, error) {
	if c.d.receiver == nil {
		return nil, errNoReceiver
	}
	fix, err := c.d.read(ctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		if last := c.d.cached(); last != nil {
			c.d.logger.Debug("receiver read timed out, returning last known fix", "receiver", c.d.receiver.Name())
			return last, nil
		}
		// Not the caller's deadline: report a receiver failure.
		return nil, fmt.Errorf("%w: %s sent no data within %s", errReceiverSilent, c.d.receiver.Name(), c.d.readTimeout)
	}
	return fix, err
}

// RegisterUpdates starts a ticker loop for l. Registering the same listener
// again replaces its loop.
func (c *locationClient) RegisterUpdates(ctx context.Context, req *domain.AcquisitionRequest, l domain.FixListener) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.d.receiver == nil {
		return errNoReceiver
	}

	c.stop(ctx, l)

	loopCtx, cancel := context.WithCancel(context.Background())
	loop := &updateLoop{cancel: cancel, done: make(chan struct{})}

	c.d.mu.Lock()
	c.d.loops[l] = loop
	c.d.mu.Unlock()

	go c.run(loopCtx, req, l, loop)
	c.d.logger.Debug("location updates registered", "receiver", c.d.receiver.Name(), "request", req.String())
	return nil
}

// UnregisterUpdates stops the loop for l and waits for it to exit. When the
// loop is inside l.OnFix, possibly the caller itself, it returns once the
// loop is cancelled: no further fix is delivered after the current one.
// Unknown listeners are ignored.
func (c *locationClient) UnregisterUpdates(ctx context.Context, l domain.FixListener) error {
	return c.stop(ctx, l)
}

func (c *locationClient) stop(ctx context.Context, l domain.FixListener) error {
	c.d.mu.Lock()
	loop, ok := c.d.loops[l]
	delete(c.d.loops, l)
	c.d.mu.Unlock()
	if !ok {
		return nil
	}

	loop.cancel()
	if loop.delivering.Load() {
		c.d.logger.Debug("location updates unregistered during delivery")
		return nil
	}
	select {
	case <-loop.done:
		c.d.logger.Debug("location updates unregistered")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for update loop: %w", ctx.Err())
	}
}

func (c *locationClient) run(ctx context.Context, req *domain.AcquisitionRequest, l domain.FixListener, loop *updateLoop) {
	defer close(loop.done)

	ticker := c.d.clock.NewTicker(req.Interval())
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if c.d.Mode() == ModeOff {
			continue
		}
		if !lastSent.IsZero() && c.d.clock.Since(lastSent) < req.FastestInterval() {
			continue
		}

		fix, err := c.d.read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.d.logger.Warn("location update read failed", "receiver", c.d.receiver.Name(), "error", err)
			}
			continue
		}
		if fix == nil || ctx.Err() != nil {
			continue
		}
		lastSent = c.d.clock.Now()
		loop.delivering.Store(true)
		l.OnFix(*fix)
		loop.delivering.Store(false)
	}
}
