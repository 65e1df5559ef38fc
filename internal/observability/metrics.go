package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sunny_forecast"

// Metrics holds the Prometheus collectors for the forecast pipeline.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,NoCredential,RequestError,NoData}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	Refreshes        *prometheus.CounterVec // labels: result={applied,superseded,nodata}
	LocationsTracked prometheus.Gauge

	GeocodeRequests *prometheus.CounterVec // labels: method={search,reverse}, outcome={success,error,notfound}
	GeocodeCache    *prometheus.CounterVec // labels: method={search,reverse}, result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.Refreshes,
		m.LocationsTracked,
		m.GeocodeRequests,
		m.GeocodeCache,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that no registry exports. Any number
// may coexist in one process.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider fetch duration in seconds, including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_refreshes_total",
			Help:      "Completed location refreshes by result.",
		}, []string{"result"}),
		LocationsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations_tracked",
			Help:      "Number of locations currently in the registry.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
	}
}
