// Package registry memoizes the platform client handles and the request
// descriptors every acquisition shares.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
)

const (
	// UpdateInterval is the desired interval for location updates. Inexact.
	UpdateInterval = 10 * time.Second

	// DefaultPriority is the accuracy requested for every acquisition.
	DefaultPriority = domain.PriorityHighAccuracy
)

// Forgetter drops subscription state without touching the platform.
type Forgetter interface {
	Forget()
}

// Registry lazily creates and memoizes one location client, one settings
// client, one acquisition request and one settings requirement. It is safe
// for concurrent use; the first caller creates, the rest wait on the mutex.
type Registry struct {
	platform domain.Platform
	logger   *slog.Logger

	mu          sync.Mutex
	location    domain.LocationClient
	settings    domain.SettingsClient
	request     *domain.AcquisitionRequest
	requirement *domain.SettingsRequirement
	forgetters  []Forgetter
}

// New creates a Registry bound to platform.
func New(platform domain.Platform, logger *slog.Logger) *Registry {
	return &Registry{platform: platform, logger: logger}
}

// Attach registers subscription state to be cleared by Reset.
func (r *Registry) Attach(f Forgetter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgetters = append(r.forgetters, f)
}

// GetLocationClient returns the memoized location client, creating it on first use.
func (r *Registry) GetLocationClient() domain.LocationClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.location == nil {
		r.location = r.platform.NewLocationClient()
		r.logger.Debug("location client created")
	}
	return r.location
}

// GetSettingsClient returns the memoized settings client, creating it on first use.
func (r *Registry) GetSettingsClient() domain.SettingsClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		r.settings = r.platform.NewSettingsClient()
		r.logger.Debug("settings client created")
	}
	return r.settings
}

// GetAcquisitionRequest returns the memoized acquisition request.
func (r *Registry) GetAcquisitionRequest() *domain.AcquisitionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquisitionRequestLocked()
}

// GetSettingsRequirement returns the memoized settings requirement derived
// from the acquisition request.
func (r *Registry) GetSettingsRequirement() *domain.SettingsRequirement {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requirement == nil {
		r.requirement = domain.NewSettingsRequirement(r.acquisitionRequestLocked())
	}
	return r.requirement
}

func (r *Registry) acquisitionRequestLocked() *domain.AcquisitionRequest {
	if r.request == nil {
		r.request = domain.NewAcquisitionRequest(UpdateInterval, DefaultPriority)
	}
	return r.request
}

// Reset clears every memoized value and the attached subscription state.
// It does not unregister an active stream at the platform; call Stop first.
func (r *Registry) Reset() {
	r.mu.Lock()
	forgetters := r.forgetters
	r.location = nil
	r.settings = nil
	r.request = nil
	r.requirement = nil
	r.mu.Unlock()

	for _, f := range forgetters {
		f.Forget()
	}
	r.logger.Debug("registry reset")
}
