package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

// ORS accepts up to 3500 matrix elements per request; 25 sources keep
// requests small enough to retry cheaply.
const defaultBatchSize = 25

// ORSOracle implements DistanceMatrixOracle using the OpenRouteService
// matrix endpoint. It is safe for concurrent use.
type ORSOracle struct {
	client    *retryClient
	limiter   *rate.Limiter
	apiKey    string
	baseURL   string
	batchSize int
}

type ORSOption func(*ORSOracle)

func WithORSBaseURL(u string) ORSOption {
	return func(o *ORSOracle) { o.baseURL = u }
}

func WithORSHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSOracle) { o.client = newRetryClient(c) }
}

// WithORSRateLimit caps outgoing requests, retries included.
func WithORSRateLimit(l *rate.Limiter) ORSOption {
	return func(o *ORSOracle) { o.limiter = l }
}

func WithORSBatchSize(n int) ORSOption {
	return func(o *ORSOracle) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func NewORSOracle(apiKey string, opts ...ORSOption) (*ORSOracle, error) {
	if apiKey == "" {
		return nil, eris.New("ORS api key is empty")
	}

	o := &ORSOracle{
		client:    newRetryClient(nil),
		apiKey:    apiKey,
		baseURL:   defaultORSBaseURL,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client.limiter = o.limiter
	return o, nil
}

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Units        string      `json:"units"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

func (o *ORSOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	return single(o.GetDistances(ctx, []ports.DistanceQuery{{Origin: origin, Destination: destination}}, opts))
}

// GetDistances issues one matrix request per destination and chunk of
// origins. A failed chunk marks its queries failed; the error is returned
// only when every chunk failed.
func (o *ORSOracle) GetDistances(ctx context.Context, queries []ports.DistanceQuery, opts ports.TravelOptions) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetDistances")(&err)

	profile, err := orsProfile(opts.Mode)
	if err != nil {
		return nil, err
	}

	results := initResults(queries)
	var lastErr error
	chunks, failed := 0, 0

	for _, g := range groupByDestination(queries) {
		for _, positions := range chunk(g.positions, o.batchSize) {
			chunks++
			if err := o.fetchChunk(ctx, profile, queries, positions, g.destination, results); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				failed++
				lastErr = err
				zap.L().Warn("ors matrix chunk failed", append(obs.Fields(ctx),
					zap.Int("origins", len(positions)), zap.Error(err))...)
			}
		}
	}

	if chunks > 0 && failed == chunks {
		return nil, eris.Wrap(lastErr, "ors matrix")
	}
	return results, nil
}

// fetchChunk requests origins (by position) to one destination and writes
// answers into results.
func (o *ORSOracle) fetchChunk(
	ctx context.Context,
	profile string,
	queries []ports.DistanceQuery,
	positions []int,
	destination domain.Coordinates,
	results []ports.DistanceResult,
) error {
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, profile)

	locations := make([][]float64, 0, len(positions)+1)
	sources := make([]int, 0, len(positions))
	for i, p := range positions {
		locations = append(locations, queries[p].Origin.CoordsToList())
		sources = append(sources, i)
	}
	locations = append(locations, destination.CoordsToList())

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      sources,
		Destinations: []int{len(positions)},
		Metrics:      []string{"distance", "duration"},
		Units:        "m",
	})
	if err != nil {
		return eris.Wrap(err, "marshal matrix request")
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", o.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return eris.Wrap(err, "matrix request failed")
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return eris.Wrap(err, "decode matrix response")
	}

	if len(mr.Distances) != len(positions) || len(mr.Durations) != len(positions) {
		return eris.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(positions), len(mr.Distances), len(mr.Durations),
		)
	}

	for i, p := range positions {
		if len(mr.Distances[i]) != 1 || len(mr.Durations[i]) != 1 {
			continue
		}
		meters, seconds := mr.Distances[i][0], mr.Durations[i][0]
		// ORS reports unroutable pairs as null.
		if meters == nil || seconds == nil {
			continue
		}
		results[p] = ports.DistanceResult{
			DistanceKm:  *meters / 1000,
			DurationMin: *seconds / 60,
			Status:      ports.StatusOK,
		}
	}
	return nil
}

func orsProfile(mode ports.TravelMode) (string, error) {
	switch mode {
	case ports.TravelDriving, "":
		return "driving-car", nil
	case ports.TravelWalking:
		return "foot-walking", nil
	case ports.TravelBicycling:
		return "cycling-regular", nil
	}
	return "", eris.Errorf("ors: unsupported travel mode %q", mode)
}
