package locator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/locator"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
	"github.com/couchcryptid/location-orchestrator/internal/registry"
	"github.com/couchcryptid/location-orchestrator/internal/settings"
	"github.com/couchcryptid/location-orchestrator/internal/stream"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLocation struct {
	mu              sync.Mutex
	fix             *domain.Fix
	lastFixErr      error
	registerErr     error
	unregisterCalls int
	registerCalls   int
	lastFixCalls    int
	request         *domain.AcquisitionRequest
	listener        domain.FixListener
}

func (m *mockLocation) LastFix(context.Context) (*domain.Fix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFixCalls++
	return m.fix, m.lastFixErr
}

func (m *mockLocation) RegisterUpdates(_ context.Context, req *domain.AcquisitionRequest, l domain.FixListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls++
	if m.registerErr != nil {
		return m.registerErr
	}
	m.request = req
	m.listener = l
	return nil
}

func (m *mockLocation) UnregisterUpdates(context.Context, domain.FixListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterCalls++
	m.listener = nil
	return nil
}

func (m *mockLocation) emit(f domain.Fix) {
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l.OnFix(f)
	}
}

// mockSettings replays errs in order, then reports satisfied.
type mockSettings struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *mockSettings) CheckSettings(context.Context, *domain.SettingsRequirement) (domain.SettingsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.SettingsResponse{}, m.errs[i]
	}
	return domain.SettingsResponse{LocationUsable: true, GPSUsable: true, NetworkUsable: true}, nil
}

type mockPlatform struct {
	location *mockLocation
	settings *mockSettings
}

func (p *mockPlatform) NewLocationClient() domain.LocationClient { return p.location }
func (p *mockPlatform) NewSettingsClient() domain.SettingsClient { return p.settings }

type mockUI struct {
	mu       sync.Mutex
	accept   bool
	err      error
	launches int
}

func (m *mockUI) Launch(context.Context, domain.ResolutionToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launches++
	return m.accept, m.err
}

type harness struct {
	location *mockLocation
	settings *mockSettings
	ui       *mockUI
	metrics  *observability.Metrics
	registry *registry.Registry
	orch     *locator.Orchestrator
}

func newHarness(t *testing.T, opts ...locator.Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		location: &mockLocation{},
		settings: &mockSettings{},
		ui:       &mockUI{},
		metrics:  observability.NewMetricsForTesting(),
	}
	h.registry = registry.New(&mockPlatform{location: h.location, settings: h.settings}, logger)
	sub := stream.New(logger, h.metrics)
	h.registry.Attach(sub)
	h.orch = locator.New(
		h.registry,
		settings.NewGate(h.registry, logger, h.metrics),
		settings.NewBridge(h.ui, logger, h.metrics),
		sub,
		logger,
		h.metrics,
		opts...,
	)
	return h
}

func resolvable(reason string) error {
	return &domain.ResolvableError{Token: domain.NewResolutionToken(reason, nil), Err: errors.New(reason)}
}

var googleplex = domain.Fix{
	Latitude:  37.4219,
	Longitude: -122.0840,
	Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Accuracy:  5,
	Provider:  "gps",
}

// --- RequestOnce ---

func TestRequestOnce_SatisfiedWithFix(t *testing.T) {
	h := newHarness(t)
	fix := googleplex
	h.location.fix = &fix

	got, err := h.orch.RequestOnce(context.Background())

	require.NoError(t, err)
	if diff := cmp.Diff(googleplex, got); diff != "" {
		t.Errorf("fix mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, h.ui.launches)
	assert.Equal(t, 1, h.settings.calls)
	require.NoError(t, h.orch.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Acquisitions.WithLabelValues("once", "success")), 0)
}

func TestRequestOnce_NoFix(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrNoFixAvailable)
	require.Error(t, h.orch.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Acquisitions.WithLabelValues("once", "error")), 0)
}

func TestRequestOnce_ResolveAccepted(t *testing.T) {
	h := newHarness(t)
	h.settings.errs = []error{resolvable("gps disabled")}
	h.ui.accept = true
	fix := googleplex
	h.location.fix = &fix

	got, err := h.orch.RequestOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, googleplex.Latitude, got.Latitude)
	assert.Equal(t, 1, h.ui.launches)
	assert.Equal(t, 2, h.settings.calls, "exactly one re-check after acceptance")
	assert.Equal(t, 1, h.location.lastFixCalls)
}

func TestRequestOnce_ResolveAcceptedTwice(t *testing.T) {
	h := newHarness(t)
	h.settings.errs = []error{resolvable("gps disabled"), resolvable("wifi scan disabled")}
	h.ui.accept = true
	fix := googleplex
	h.location.fix = &fix

	_, err := h.orch.RequestOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, h.ui.launches)
	assert.Equal(t, 3, h.settings.calls)
}

func TestRequestOnce_ResolveDeclined(t *testing.T) {
	h := newHarness(t)
	settingsErr := resolvable("gps disabled")
	h.settings.errs = []error{settingsErr}

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrSettingsUnresolvable)
	require.ErrorIs(t, err, settingsErr)
	assert.Equal(t, 1, h.settings.calls)
	assert.Equal(t, 0, h.location.lastFixCalls)
}

func TestRequestOnce_LaunchFailure(t *testing.T) {
	h := newHarness(t)
	settingsErr := resolvable("gps disabled")
	launchErr := errors.New("activity gone")
	h.settings.errs = []error{settingsErr}
	h.ui.err = launchErr

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrSettingsUnresolvable)
	require.ErrorIs(t, err, settingsErr)
	require.ErrorIs(t, err, launchErr)
}

func TestRequestOnce_Unresolvable(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("settings service unavailable")
	h.settings.errs = []error{cause}

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrPlatform)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 0, h.ui.launches)
}

func TestRequestOnce_PermissionDeniedPassesThrough(t *testing.T) {
	h := newHarness(t)
	h.location.lastFixErr = domain.ErrPermissionDenied

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.NotErrorIs(t, err, domain.ErrPlatform)
}

func TestRequestOnce_LastFixPlatformError(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("binder died")
	h.location.lastFixErr = cause

	_, err := h.orch.RequestOnce(context.Background())

	require.ErrorIs(t, err, domain.ErrPlatform)
	require.ErrorIs(t, err, cause)
}

func TestRequestOnce_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.RequestOnce(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.settings.calls)
}

func TestRequestOnce_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []locator.State
	h := newHarness(t, locator.WithStateObserver(func(s locator.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}))
	h.settings.errs = []error{resolvable("gps disabled")}
	h.ui.accept = true
	fix := googleplex
	h.location.fix = &fix

	_, err := h.orch.RequestOnce(context.Background())
	require.NoError(t, err)

	want := []locator.State{
		locator.StateCheckingSettings,
		locator.StateResolving,
		locator.StateCheckingSettings,
		locator.StateAcquiring,
		locator.StateIdle,
	}
	assert.Equal(t, want, states)
}

// --- RequestStream / Stop ---

func TestRequestStream_DeliversFixes(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var got []domain.Fix
	err := h.orch.RequestStream(context.Background(), func(f domain.Fix) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f)
	})
	require.NoError(t, err)
	assert.True(t, h.orch.Streaming())

	// The registered request is the concrete high-accuracy descriptor.
	require.NotNil(t, h.location.request)
	assert.Equal(t, 10*time.Second, h.location.request.Interval())
	assert.Equal(t, 5*time.Second, h.location.request.FastestInterval())
	assert.Equal(t, domain.PriorityHighAccuracy, h.location.request.Priority())

	h.location.emit(googleplex)

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, 37.4219, got[0].Latitude)
	assert.Equal(t, -122.0840, got[0].Longitude)
	mu.Unlock()
	require.NoError(t, h.orch.CheckReadiness(context.Background()))
}

func TestRequestStream_SecondRequestRejectedWithoutPrompt(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.RequestStream(context.Background(), func(domain.Fix) {}))
	h.settings.errs = []error{nil, resolvable("gps disabled")}

	err := h.orch.RequestStream(context.Background(), func(domain.Fix) {})

	require.ErrorIs(t, err, domain.ErrStreamAlreadyActive)
	assert.Equal(t, 0, h.ui.launches)
	assert.Equal(t, 1, h.settings.calls)
	assert.Equal(t, 1, h.location.registerCalls)
}

func TestRequestStream_ResolveDeclined(t *testing.T) {
	h := newHarness(t)
	h.settings.errs = []error{resolvable("gps disabled")}

	err := h.orch.RequestStream(context.Background(), func(domain.Fix) {})

	require.ErrorIs(t, err, domain.ErrSettingsUnresolvable)
	assert.False(t, h.orch.Streaming())
	assert.Equal(t, 0, h.location.registerCalls)
}

func TestRequestStream_RegisterFailure(t *testing.T) {
	h := newHarness(t)
	h.location.registerErr = domain.Tag(domain.ErrPermissionDenied, errors.New("ACCESS_FINE_LOCATION"))

	err := h.orch.RequestStream(context.Background(), func(domain.Fix) {})

	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.False(t, h.orch.Streaming())
}

func TestStop_WithoutSubscription(t *testing.T) {
	h := newHarness(t)

	h.orch.Stop()

	assert.Equal(t, 0, h.location.unregisterCalls)
}

func TestStop_TwiceUnregistersOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.RequestStream(context.Background(), func(domain.Fix) {}))

	h.orch.Stop()
	h.orch.Stop()

	assert.Equal(t, 1, h.location.unregisterCalls)
	assert.False(t, h.orch.Streaming())
}

func TestStop_ThenStreamAgain(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.RequestStream(context.Background(), func(domain.Fix) {}))
	h.orch.Stop()

	require.NoError(t, h.orch.RequestStream(context.Background(), func(domain.Fix) {}))
	assert.Equal(t, 2, h.location.registerCalls)
}

func TestRegistryReset_ForgetsStream(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.RequestStream(context.Background(), func(domain.Fix) {}))

	h.registry.Reset()
	h.orch.Stop()

	assert.False(t, h.orch.Streaming())
	assert.Equal(t, 0, h.location.unregisterCalls)
}

// --- CheckSettings ---

func TestCheckSettings_ResolvesThenReports(t *testing.T) {
	h := newHarness(t)
	h.settings.errs = []error{resolvable("gps disabled")}
	h.ui.accept = true

	resp, err := h.orch.CheckSettings(context.Background())

	require.NoError(t, err)
	assert.True(t, resp.LocationUsable)
	assert.Equal(t, 0, h.location.lastFixCalls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", locator.StateIdle.String())
	assert.Equal(t, "checking_settings", locator.StateCheckingSettings.String())
	assert.Equal(t, "resolving", locator.StateResolving.String())
	assert.Equal(t, "acquiring", locator.StateAcquiring.String())
	assert.Equal(t, "unknown", locator.State(9).String())
}
