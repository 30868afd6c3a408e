// Package stream owns the single streaming fix registration shared by all
// RequestStream callers.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

// stopTimeout bounds the platform unregistration call made by Stop.
const stopTimeout = 5 * time.Second

// Subscription holds at most one platform registration. Register runs the
// platform call under the mutex so two registrations never race; Stop clears
// the local state under the mutex and unregisters after releasing it, so it
// may be called from inside the fix callback.
type Subscription struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	registered bool
	listener   *listener
	client     domain.LocationClient
}

// New creates an unregistered Subscription.
func New(logger *slog.Logger, metrics *observability.Metrics) *Subscription {
	return &Subscription{logger: logger, metrics: metrics}
}

// listener adapts a callback to domain.FixListener. Deliveries after Stop
// are dropped.
type listener struct {
	onFix   func(domain.Fix)
	active  atomic.Bool
	metrics *observability.Metrics
}

func (l *listener) OnFix(f domain.Fix) {
	if !l.active.Load() {
		return
	}
	l.metrics.FixesDelivered.Inc()
	l.onFix(f)
}

// Active reports whether a registration is live.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Register installs onFix as the platform streaming callback. It fails with
// domain.ErrStreamAlreadyActive when a registration already exists; platform
// errors are returned as-is and leave the subscription unregistered.
func (s *Subscription) Register(ctx context.Context, client domain.LocationClient, req *domain.AcquisitionRequest, onFix func(domain.Fix)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return domain.ErrStreamAlreadyActive
	}

	l := &listener{onFix: onFix, metrics: s.metrics}
	l.active.Store(true)
	if err := client.RegisterUpdates(ctx, req, l); err != nil {
		l.active.Store(false)
		return err
	}

	s.registered = true
	s.listener = l
	s.client = client
	s.metrics.StreamActive.Set(1)
	s.logger.Info("stream subscription registered", "request", req.String())
	return nil
}

// Stop unregisters an active subscription exactly once. It never fails;
// unregistration errors are logged.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if !s.registered {
		s.mu.Unlock()
		return
	}
	l, client := s.listener, s.client
	s.clearLocked()
	l.active.Store(false)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := client.UnregisterUpdates(ctx, l); err != nil {
		s.logger.Warn("unregister location updates failed", "error", err)
		return
	}
	s.logger.Info("stream subscription stopped")
}

// Forget drops the local state without unregistering at the platform. The
// platform-side registration, if any, stays alive.
func (s *Subscription) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		s.logger.Warn("subscription forgotten while registered, platform registration leaked")
	}
	s.clearLocked()
}

func (s *Subscription) clearLocked() {
	s.registered = false
	s.listener = nil
	s.client = nil
	s.metrics.StreamActive.Set(0)
}
