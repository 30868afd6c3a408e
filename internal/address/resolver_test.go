package address

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/location-orchestrator/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGeocoder struct {
	available  bool
	results    []domain.Address
	err        error
	block      bool
	calls      atomic.Int32
	maxResults atomic.Int32
}

func (m *mockGeocoder) IsAvailable() bool { return m.available }

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, _, _ float64, maxResults int) ([]domain.Address, error) {
	m.calls.Add(1)
	m.maxResults.Store(int32(maxResults))
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.results, m.err
}

func newResolver(g domain.Geocoder) (*Resolver, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return NewResolver(g, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics), metrics
}

var googleplex = domain.Coordinates{Latitude: 37.4219, Longitude: -122.0840}

func TestResolve_FirstMatch(t *testing.T) {
	g := &mockGeocoder{available: true, results: []domain.Address{
		{FormattedAddress: "1600 Amphitheatre Pkwy", Region: "California", Country: "United States"},
		{FormattedAddress: "Mountain View"},
	}}
	r, metrics := newResolver(g)

	addr, err := r.Resolve(context.Background(), googleplex)

	require.NoError(t, err)
	assert.Equal(t, "1600 Amphitheatre Pkwy", addr.FormattedAddress)
	assert.Equal(t, "California, United States", addr.Summary())
	assert.Equal(t, int32(1), g.maxResults.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("success")), 0)
}

func TestResolve_Unavailable(t *testing.T) {
	g := &mockGeocoder{available: false}
	r, metrics := newResolver(g)

	_, err := r.Resolve(context.Background(), googleplex)

	require.ErrorIs(t, err, domain.ErrGeocoderUnavailable)
	assert.Equal(t, int32(0), g.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("unavailable")), 0)
}

func TestResolve_NilGeocoder(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), googleplex)

	require.ErrorIs(t, err, domain.ErrGeocoderUnavailable)
}

func TestResolve_NoMatches(t *testing.T) {
	r, metrics := newResolver(&mockGeocoder{available: true})

	_, err := r.Resolve(context.Background(), googleplex)

	require.ErrorIs(t, err, domain.ErrNoAddressFound)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")), 0)
}

func TestResolve_GeocoderError(t *testing.T) {
	cause := errors.New("grpc failed")
	r, _ := newResolver(&mockGeocoder{available: true, err: cause})

	_, err := r.Resolve(context.Background(), googleplex)

	require.ErrorIs(t, err, domain.ErrPlatform)
	require.ErrorIs(t, err, cause)
}

func TestResolve_ContextTimeout(t *testing.T) {
	r, _ := newResolver(&mockGeocoder{available: true, block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, googleplex)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveAsync_DeliversOnce(t *testing.T) {
	r, _ := newResolver(&mockGeocoder{available: true, results: []domain.Address{{FormattedAddress: "x"}}})

	ch := r.ResolveAsync(context.Background(), googleplex)

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		assert.Equal(t, "x", res.Address.FormattedAddress)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
}
