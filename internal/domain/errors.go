package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every error surfaced by the orchestrator or the address
// resolver matches exactly one of these with errors.Is.
var (
	// ErrPermissionDenied indicates the caller lacks access to location data.
	// Detected by the platform call itself, never pre-checked.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrSettingsUnresolvable indicates device settings are insufficient and
	// the user declined or failed to fix them.
	ErrSettingsUnresolvable = errors.New("location settings unresolvable")

	// ErrNoFixAvailable indicates the device has never obtained a fix.
	ErrNoFixAvailable = errors.New("no location fix available")

	// ErrStreamAlreadyActive indicates a stream subscription is already registered.
	ErrStreamAlreadyActive = errors.New("location stream already active")

	// ErrGeocoderUnavailable indicates no geocoder backend is present.
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")

	// ErrNoAddressFound indicates the geocoder returned no match.
	ErrNoAddressFound = errors.New("no address found")

	// ErrPlatform wraps any other failure surfaced by a platform service.
	ErrPlatform = errors.New("location platform error")
)

// Tag wraps cause with a taxonomy sentinel, keeping both reachable through
// errors.Is. A nil cause returns kind itself.
func Tag(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// ResolvableError is returned by a SettingsClient when the device settings do
// not meet a requirement but a resolution UI can change them in place.
type ResolvableError struct {
	Token ResolutionToken
	Err   error
}

func (e *ResolvableError) Error() string {
	if e.Err == nil {
		return "location settings resolution required: " + e.Token.Reason
	}
	return "location settings resolution required: " + e.Err.Error()
}

func (e *ResolvableError) Unwrap() error { return e.Err }

// IsPermissionDenied returns true if err is tagged ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsResolvable returns the resolution token when err carries one.
func IsResolvable(err error) (ResolutionToken, bool) {
	var re *ResolvableError
	if errors.As(err, &re) {
		return re.Token, true
	}
	return ResolutionToken{}, false
}
