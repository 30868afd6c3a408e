// Package domain holds the location data model shared by the orchestrator and
// its platform adapters.
//
// # Fixes
//
// A [Fix] is a single reading handed over by the platform location service.
// The orchestrator passes fixes through untouched; only adapters populate
// them. Coordinates are WGS-84 decimal degrees, Accuracy is an estimated
// horizontal radius in meters, Timestamp is the receiver time in UTC.
//
// # Request descriptors
//
// An [AcquisitionRequest] describes how often updates are wanted:
//
//	interval  desired update period, inexact
//	fastest   floor on the delivery period, always interval/2
//	priority  accuracy/power trade-off (high accuracy, balanced, low power)
//
// A [SettingsRequirement] wraps exactly one acquisition request and is what
// the settings client is asked to verify. Both are immutable after
// construction; the registry memoizes one of each.
//
// # Collaborators
//
// Platform-facing interfaces live in platform.go: [LocationClient],
// [SettingsClient], [ResolutionUI], [Geocoder] and the [Platform] factory the
// registry uses to create clients. A settings check that the user can fix in
// place fails with a [*ResolvableError] carrying an opaque [ResolutionToken].
//
// # Errors
//
// Failures are tagged with one of the sentinels in errors.go and keep their
// original cause, so both errors.Is(err, ErrPlatform) and errors.Is(err, cause)
// hold for a wrapped platform failure.
package domain
