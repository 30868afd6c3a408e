package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the locator.
type Metrics struct {
	SettingsChecks *prometheus.CounterVec // labels: outcome={satisfied,resolvable,unresolvable}
	Resolutions    *prometheus.CounterVec // labels: result={accepted,declined,failed}
	Acquisitions   *prometheus.CounterVec // labels: mode={once,stream}, outcome={success,error}
	FixesDelivered prometheus.Counter
	StreamActive   prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty,unavailable}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all locator metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SettingsChecks,
		m.Resolutions,
		m.Acquisitions,
		m.FixesDelivered,
		m.StreamActive,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SettingsChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "settings_checks_total",
			Help:      "Location settings checks by outcome.",
		}, []string{"outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "resolutions_total",
			Help:      "Settings resolution flows by result.",
		}, []string{"result"}),
		Acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "acquisitions_total",
			Help:      "Acquisition calls by mode and outcome.",
		}, []string{"mode", "outcome"}),
		FixesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "fixes_delivered_total",
			Help:      "Fixes delivered to the stream subscriber.",
		}),
		StreamActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locator",
			Name:      "stream_active",
			Help:      "1 while a stream subscription is registered, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "locator",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locator",
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
	}
}
