package distance

import (
	"net/http"

	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	ProviderORS      = "ors"
	ProviderGoogle   = "google"
	ProviderEstimate = "estimate"
)

// Settings selects and tunes an oracle backend.
type Settings struct {
	Provider     string
	ORSAPIKey    string
	GoogleAPIKey string
	// Overrides the provider's default endpoint when set.
	BaseURL   string
	BatchSize int
	// Requests per second and burst; zero disables limiting.
	RateLimit float64
	Burst     int
	Circuity  float64
	SpeedKph  float64

	HTTPClient *http.Client
}

// NewOracle builds the configured backend, instrumented, with cache in
// front of it when cache is non-nil.
func NewOracle(s Settings, cache ports.DistanceCache) (ports.DistanceOracle, error) {
	var limiter *rate.Limiter
	if s.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.RateLimit), max(1, s.Burst))
	}

	var base ports.DistanceOracle
	switch s.Provider {
	case ProviderORS:
		opts := []ORSOption{WithORSBatchSize(s.BatchSize), WithORSRateLimit(limiter)}
		if s.BaseURL != "" {
			opts = append(opts, WithORSBaseURL(s.BaseURL))
		}
		if s.HTTPClient != nil {
			opts = append(opts, WithORSHTTPClient(s.HTTPClient))
		}
		o, err := NewORSOracle(s.ORSAPIKey, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "new oracle")
		}
		base = o
	case ProviderGoogle:
		opts := []GoogleOption{WithGoogleBatchSize(s.BatchSize), WithGoogleRateLimit(limiter)}
		if s.BaseURL != "" {
			opts = append(opts, WithGoogleBaseURL(s.BaseURL))
		}
		if s.HTTPClient != nil {
			opts = append(opts, WithGoogleHTTPClient(s.HTTPClient))
		}
		g, err := NewGoogleOracle(s.GoogleAPIKey, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "new oracle")
		}
		base = g
	case ProviderEstimate:
		opts := []EstimateOption{WithCircuity(s.Circuity)}
		if s.SpeedKph > 0 {
			opts = append(opts, WithSpeed(ports.TravelDriving, s.SpeedKph))
		}
		base = NewEstimateOracle(opts...)
	default:
		return nil, eris.Errorf("new oracle: unknown provider %q", s.Provider)
	}

	oracle := NewInstrumentedOracle(base, s.Provider)
	if cache != nil {
		oracle = NewCachedOracle(oracle, cache)
	}
	return oracle, nil
}
