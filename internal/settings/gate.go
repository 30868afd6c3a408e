// Package settings checks device location settings against a requirement and
// bridges resolvable failures to the user-facing resolution flow.
package settings

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

// Kind classifies a settings check.
type Kind int

const (
	Satisfied Kind = iota
	ResolvableFailure
	UnresolvableFailure
)

func (k Kind) String() string {
	switch k {
	case Satisfied:
		return "satisfied"
	case ResolvableFailure:
		return "resolvable"
	case UnresolvableFailure:
		return "unresolvable"
	default:
		return "unknown"
	}
}

// Outcome is the result of one settings check. Response is set when Kind is
// Satisfied, Token when ResolvableFailure, Err for both failure kinds.
type Outcome struct {
	Kind     Kind
	Response domain.SettingsResponse
	Token    domain.ResolutionToken
	Err      error
}

// ClientProvider returns the shared settings client.
type ClientProvider interface {
	GetSettingsClient() domain.SettingsClient
}

// Gate runs a single settings check per call. It never retries.
type Gate struct {
	clients ClientProvider
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewGate creates a Gate reading its client from clients.
func NewGate(clients ClientProvider, logger *slog.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{clients: clients, logger: logger, metrics: metrics}
}

// Check verifies the device settings against req.
func (g *Gate) Check(ctx context.Context, req *domain.SettingsRequirement) Outcome {
	resp, err := g.clients.GetSettingsClient().CheckSettings(ctx, req)

	var out Outcome
	switch token, ok := domain.IsResolvable(err); {
	case err == nil:
		out = Outcome{Kind: Satisfied, Response: resp}
	case ok:
		out = Outcome{Kind: ResolvableFailure, Token: token, Err: err}
	default:
		out = Outcome{Kind: UnresolvableFailure, Err: err}
	}

	g.metrics.SettingsChecks.WithLabelValues(out.Kind.String()).Inc()
	g.logger.Debug("settings checked", "outcome", out.Kind.String(), "priority", req.Priority().String())
	return out
}
