package domain

import (
	"fmt"
	"time"
)

// Priority is the accuracy/power trade-off requested from the platform.
type Priority int

const (
	PriorityLowPower Priority = iota
	PriorityBalanced
	PriorityHighAccuracy
)

func (p Priority) String() string {
	switch p {
	case PriorityLowPower:
		return "low-power"
	case PriorityBalanced:
		return "balanced"
	case PriorityHighAccuracy:
		return "high-accuracy"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// AcquisitionRequest describes the desired update cadence and accuracy.
// The fastest interval is always half the desired interval.
type AcquisitionRequest struct {
	interval time.Duration
	fastest  time.Duration
	priority Priority
}

// NewAcquisitionRequest builds a request for the given interval and priority.
func NewAcquisitionRequest(interval time.Duration, priority Priority) *AcquisitionRequest {
	return &AcquisitionRequest{
		interval: interval,
		fastest:  interval / 2,
		priority: priority,
	}
}

// Interval is the desired, inexact update period.
func (r *AcquisitionRequest) Interval() time.Duration { return r.interval }

// FastestInterval is the minimum period between two delivered updates.
func (r *AcquisitionRequest) FastestInterval() time.Duration { return r.fastest }

func (r *AcquisitionRequest) Priority() Priority { return r.priority }

func (r *AcquisitionRequest) String() string {
	return fmt.Sprintf("interval=%s fastest=%s priority=%s", r.interval, r.fastest, r.priority)
}

// SettingsRequirement is what the settings client verifies before any
// acquisition. It is derived 1:1 from an AcquisitionRequest.
type SettingsRequirement struct {
	request *AcquisitionRequest
}

// NewSettingsRequirement derives a requirement from req.
func NewSettingsRequirement(req *AcquisitionRequest) *SettingsRequirement {
	return &SettingsRequirement{request: req}
}

// Request returns the acquisition request the requirement was built from.
func (s *SettingsRequirement) Request() *AcquisitionRequest { return s.request }

// Priority is the accuracy the device settings must allow.
func (s *SettingsRequirement) Priority() Priority { return s.request.priority }

// SettingsResponse reports which location capabilities are usable.
type SettingsResponse struct {
	LocationUsable bool
	GPSUsable      bool
	NetworkUsable  bool
}
