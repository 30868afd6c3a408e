package settings

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

// Bridge hands a resolution token to the host UI and waits for the user.
type Bridge struct {
	ui      domain.ResolutionUI
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBridge creates a Bridge launching flows on ui.
func NewBridge(ui domain.ResolutionUI, logger *slog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{ui: ui, logger: logger, metrics: metrics}
}

// Resolve launches one resolution flow for token and blocks until the user
// answers or ctx is done. A flow that fails to launch counts as a rejection;
// its error is returned with accepted=false.
func (b *Bridge) Resolve(ctx context.Context, token domain.ResolutionToken) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	type result struct {
		accepted bool
		err      error
	}
	done := make(chan result, 1)
	go func() {
		accepted, err := b.ui.Launch(ctx, token)
		done <- result{accepted: accepted, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	case res = <-done:
	}

	switch {
	case res.err != nil:
		b.metrics.Resolutions.WithLabelValues("failed").Inc()
		b.logger.Warn("resolution flow failed", "token", token.ID, "error", res.err)
		return false, res.err
	case res.accepted:
		b.metrics.Resolutions.WithLabelValues("accepted").Inc()
		b.logger.Info("resolution accepted", "token", token.ID, "reason", token.Reason)
		return true, nil
	default:
		b.metrics.Resolutions.WithLabelValues("declined").Inc()
		b.logger.Info("resolution declined", "token", token.ID, "reason", token.Reason)
		return false, nil
	}
}
