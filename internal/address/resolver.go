// Package address turns fix coordinates into a human-readable address off
// the caller's goroutine.
package address

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
)

// Result carries the outcome of an asynchronous resolution.
type Result struct {
	Address domain.Address
	Err     error
}

// Resolver reverse geocodes coordinates through a domain.Geocoder.
type Resolver struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver. A nil geocoder is allowed; every
// resolution then fails with domain.ErrGeocoderUnavailable.
func NewResolver(geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{geocoder: geocoder, logger: logger, metrics: metrics}
}

// Resolve returns the best address for c, blocking until the background
// lookup finishes or ctx is done.
func (r *Resolver) Resolve(ctx context.Context, c domain.Coordinates) (domain.Address, error) {
	select {
	case res := <-r.ResolveAsync(ctx, c):
		return res.Address, res.Err
	case <-ctx.Done():
		return domain.Address{}, ctx.Err()
	}
}

// ResolveAsync starts the lookup in a new goroutine and returns a channel
// that receives exactly one Result.
func (r *Resolver) ResolveAsync(ctx context.Context, c domain.Coordinates) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		addr, err := r.lookup(ctx, c)
		out <- Result{Address: addr, Err: err}
	}()
	return out
}

func (r *Resolver) lookup(ctx context.Context, c domain.Coordinates) (domain.Address, error) {
	if r.geocoder == nil || !r.geocoder.IsAvailable() {
		r.metrics.GeocodeRequests.WithLabelValues("unavailable").Inc()
		return domain.Address{}, domain.ErrGeocoderUnavailable
	}

	matches, err := r.geocoder.ReverseGeocode(ctx, c.Latitude, c.Longitude, 1)
	if err != nil {
		r.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		r.logger.Warn("reverse geocode failed", "lat", c.Latitude, "lon", c.Longitude, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Address{}, err
		}
		return domain.Address{}, domain.Tag(domain.ErrPlatform, err)
	}

	addr, err := domain.BestMatch(matches)
	if err != nil {
		r.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.Address{}, err
	}

	r.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	r.logger.Debug("address resolved", "lat", c.Latitude, "lon", c.Longitude, "summary", addr.Summary())
	return addr, nil
}
