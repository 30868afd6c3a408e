package domain

import (
	"context"

	"github.com/google/uuid"
)

// LocationClient is the platform location service handle.
type LocationClient interface {
	// LastFix returns the most recent fix, or nil when the device has never
	// obtained one.
	LastFix(ctx context.Context) (*Fix, error)

	// RegisterUpdates starts delivering fixes to l according to req.
	RegisterUpdates(ctx context.Context, req *AcquisitionRequest, l FixListener) error

	// UnregisterUpdates stops deliveries to l.
	UnregisterUpdates(ctx context.Context, l FixListener) error
}

// SettingsClient is the platform settings service handle.
type SettingsClient interface {
	// CheckSettings verifies the device settings against req. A failure the
	// user can fix in place is reported as *ResolvableError.
	CheckSettings(ctx context.Context, req *SettingsRequirement) (SettingsResponse, error)
}

// Platform creates client handles. The registry calls each factory at most
// once per reset cycle.
type Platform interface {
	NewLocationClient() LocationClient
	NewSettingsClient() SettingsClient
}

// ResolutionUI is the host flow that lets a user upgrade device settings.
type ResolutionUI interface {
	// Launch shows the flow for token and blocks until the user accepts
	// (true) or rejects (false), or the flow fails.
	Launch(ctx context.Context, token ResolutionToken) (bool, error)
}

// ResolutionToken is an opaque handle on a pending settings change. Only the
// platform that issued it and the resolution UI look inside.
type ResolutionToken struct {
	ID     string
	Reason string

	apply func(ctx context.Context) error
}

// NewResolutionToken creates a token whose Apply runs apply.
func NewResolutionToken(reason string, apply func(ctx context.Context) error) ResolutionToken {
	return ResolutionToken{
		ID:     uuid.NewString(),
		Reason: reason,
		apply:  apply,
	}
}

// Apply performs the settings change the token stands for. Called by a
// resolution UI once the user accepted.
func (t ResolutionToken) Apply(ctx context.Context) error {
	if t.apply == nil {
		return nil
	}
	return t.apply(ctx)
}
