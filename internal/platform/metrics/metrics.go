package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OracleRequests counts distance oracle lookups by provider and outcome.
	OracleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_requests_total", Help: "Distance oracle lookups by provider and status."},
		[]string{"provider", "status"},
	)
	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "oracle_request_duration_seconds", Help: "Distance oracle call latency in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"provider"},
	)
	OracleCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "oracle_cache_hits_total", Help: "Oracle lookups served from the distance cache."},
	)

	// Placements counts centers placed, by selection mode.
	Placements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "placements_total", Help: "Centers placed by selection mode."},
		[]string{"mode"},
	)
	PlacementImpactMinutes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "placement_impact_minutes_total", Help: "Travel minutes saved across all placements."},
	)
	PlacementImpactKm = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "placement_impact_km_total", Help: "Haversine km saved across all placements."},
	)
)

// RegisterDefault registers collectors to Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OracleRequests)
		Registry.MustRegister(OracleDuration)
		Registry.MustRegister(OracleCacheHits)
		Registry.MustRegister(Placements)
		Registry.MustRegister(PlacementImpactMinutes)
		Registry.MustRegister(PlacementImpactKm)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
