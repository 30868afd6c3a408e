// Package locator sequences settings checks, user resolution and fix
// acquisition for one-shot and streaming location requests.
package locator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
	"github.com/couchcryptid/location-orchestrator/internal/settings"
	"github.com/couchcryptid/location-orchestrator/internal/stream"
)

// Clients supplies the memoized platform handles and descriptors.
type Clients interface {
	GetLocationClient() domain.LocationClient
	GetAcquisitionRequest() *domain.AcquisitionRequest
	GetSettingsRequirement() *domain.SettingsRequirement
}

// State is the phase a single request is in.
type State int

const (
	StateIdle State = iota
	StateCheckingSettings
	StateResolving
	StateAcquiring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingSettings:
		return "checking_settings"
	case StateResolving:
		return "resolving"
	case StateAcquiring:
		return "acquiring"
	default:
		return "unknown"
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStateObserver calls fn on every state transition of every request.
// Concurrent requests call fn concurrently.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// Orchestrator runs the check, resolve, acquire sequence.
type Orchestrator struct {
	clients Clients
	gate    *settings.Gate
	bridge  *settings.Bridge
	sub     *stream.Subscription
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	observe func(State)
}

// New creates an Orchestrator from its collaborators.
func New(clients Clients, gate *settings.Gate, bridge *settings.Bridge, sub *stream.Subscription, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		clients: clients,
		gate:    gate,
		bridge:  bridge,
		sub:     sub,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckReadiness returns nil once at least one fix has been delivered, either
// by RequestOnce or through the stream.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no location fix delivered yet")
	}
	return nil
}

// Streaming reports whether a stream subscription is registered.
func (o *Orchestrator) Streaming() bool {
	return o.sub.Active()
}

// RequestOnce returns the most recent fix after the device settings have been
// verified, resolving them with the user when possible.
func (o *Orchestrator) RequestOnce(ctx context.Context) (domain.Fix, error) {
	defer o.enter(StateIdle)

	fix, err := o.requestOnce(ctx)
	o.record("once", err)
	return fix, err
}

func (o *Orchestrator) requestOnce(ctx context.Context) (domain.Fix, error) {
	if _, err := o.awaitSettings(ctx); err != nil {
		return domain.Fix{}, err
	}

	o.enter(StateAcquiring)
	fix, err := o.clients.GetLocationClient().LastFix(ctx)
	if err != nil {
		return domain.Fix{}, classify(err)
	}
	if fix == nil {
		return domain.Fix{}, domain.ErrNoFixAvailable
	}

	o.ready.Store(true)
	o.logger.Info("fix acquired",
		"lat", fix.Latitude,
		"lon", fix.Longitude,
		"accuracy_m", fix.Accuracy,
		"provider", fix.Provider,
	)
	return *fix, nil
}

// RequestStream registers onFix for periodic fixes once the settings allow
// it. It returns when the platform registration is in place; fixes then
// arrive on platform goroutines until Stop. Only one stream may be active.
func (o *Orchestrator) RequestStream(ctx context.Context, onFix func(domain.Fix)) error {
	defer o.enter(StateIdle)

	err := o.requestStream(ctx, onFix)
	o.record("stream", err)
	return err
}

func (o *Orchestrator) requestStream(ctx context.Context, onFix func(domain.Fix)) error {
	// Checked up front so the user is never asked to fix settings for a
	// stream that would be rejected anyway.
	if o.sub.Active() {
		return domain.ErrStreamAlreadyActive
	}
	if _, err := o.awaitSettings(ctx); err != nil {
		return err
	}

	o.enter(StateAcquiring)
	deliver := func(f domain.Fix) {
		o.ready.Store(true)
		onFix(f)
	}
	err := o.sub.Register(ctx, o.clients.GetLocationClient(), o.clients.GetAcquisitionRequest(), deliver)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStreamAlreadyActive):
		return err
	default:
		return classify(err)
	}
}

// Stop ends the stream subscription if one is active. Safe to call any
// number of times.
func (o *Orchestrator) Stop() {
	o.sub.Stop()
}

// CheckSettings verifies the device settings, resolving them with the user
// when possible, without acquiring a fix.
func (o *Orchestrator) CheckSettings(ctx context.Context) (domain.SettingsResponse, error) {
	defer o.enter(StateIdle)
	return o.awaitSettings(ctx)
}

// awaitSettings loops check, resolve, check until the settings are satisfied
// or the user declines.
func (o *Orchestrator) awaitSettings(ctx context.Context) (domain.SettingsResponse, error) {
	req := o.clients.GetSettingsRequirement()
	for {
		if err := ctx.Err(); err != nil {
			return domain.SettingsResponse{}, err
		}

		o.enter(StateCheckingSettings)
		out := o.gate.Check(ctx, req)
		switch out.Kind {
		case settings.Satisfied:
			return out.Response, nil
		case settings.UnresolvableFailure:
			return domain.SettingsResponse{}, classify(out.Err)
		}

		o.enter(StateResolving)
		accepted, err := o.bridge.Resolve(ctx, out.Token)
		if accepted {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.SettingsResponse{}, ctxErr
		}
		return domain.SettingsResponse{}, domain.Tag(domain.ErrSettingsUnresolvable, errors.Join(out.Err, err))
	}
}

func (o *Orchestrator) enter(s State) {
	o.logger.Debug("request state", "state", s.String())
	if o.observe != nil {
		o.observe(s)
	}
}

func (o *Orchestrator) record(mode string, err error) {
	if err != nil {
		o.metrics.Acquisitions.WithLabelValues(mode, "error").Inc()
		o.logger.Warn("location request failed", "mode", mode, "error", err)
		return
	}
	o.metrics.Acquisitions.WithLabelValues(mode, "success").Inc()
}

// classify maps a platform failure onto the taxonomy. Permission and
// cancellation errors keep their identity; everything else is ErrPlatform.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domain.Tag(domain.ErrPlatform, err)
	}
}
