package distance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com"

// GoogleOracle implements DistanceMatrixOracle using the Google Distance
// Matrix API. Requests carry the configured arrival time so travel times
// reflect a weekday morning commute.
type GoogleOracle struct {
	client    *retryClient
	limiter   *rate.Limiter
	apiKey    string
	baseURL   string
	batchSize int
}

type GoogleOption func(*GoogleOracle)

func WithGoogleBaseURL(u string) GoogleOption {
	return func(g *GoogleOracle) { g.baseURL = u }
}

func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *GoogleOracle) { g.client = newRetryClient(c) }
}

// WithGoogleRateLimit caps outgoing requests, retries included.
func WithGoogleRateLimit(l *rate.Limiter) GoogleOption {
	return func(g *GoogleOracle) { g.limiter = l }
}

// WithGoogleBatchSize caps origins per request. Google allows at most 25.
func WithGoogleBatchSize(n int) GoogleOption {
	return func(g *GoogleOracle) {
		if n > 0 && n <= 25 {
			g.batchSize = n
		}
	}
}

func NewGoogleOracle(apiKey string, opts ...GoogleOption) (*GoogleOracle, error) {
	if apiKey == "" {
		return nil, eris.New("google api key is empty")
	}

	g := &GoogleOracle{
		client:    newRetryClient(nil),
		apiKey:    apiKey,
		baseURL:   defaultGoogleBaseURL,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client.limiter = g.limiter
	return g, nil
}

type googleMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (g *GoogleOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	return single(g.GetDistances(ctx, []ports.DistanceQuery{{Origin: origin, Destination: destination}}, opts))
}

func (g *GoogleOracle) GetDistances(ctx context.Context, queries []ports.DistanceQuery, opts ports.TravelOptions) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "google.GetDistances")(&err)

	results := initResults(queries)
	var lastErr error
	chunks, failed := 0, 0

	for _, grp := range groupByDestination(queries) {
		for _, positions := range chunk(grp.positions, g.batchSize) {
			chunks++
			if err := g.fetchChunk(ctx, opts, queries, positions, grp.destination, results); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				failed++
				lastErr = err
				zap.L().Warn("google matrix chunk failed", append(obs.Fields(ctx),
					zap.Int("origins", len(positions)), zap.Error(err))...)
			}
		}
	}

	if chunks > 0 && failed == chunks {
		return nil, eris.Wrap(lastErr, "google distance matrix")
	}
	return results, nil
}

func (g *GoogleOracle) fetchChunk(
	ctx context.Context,
	opts ports.TravelOptions,
	queries []ports.DistanceQuery,
	positions []int,
	destination domain.Coordinates,
	results []ports.DistanceResult,
) error {
	origins := make([]string, 0, len(positions))
	for _, p := range positions {
		origins = append(origins, latLng(queries[p].Origin))
	}

	params := url.Values{}
	params.Set("origins", strings.Join(origins, "|"))
	params.Set("destinations", latLng(destination))
	params.Set("mode", string(normalizeMode(opts.Mode)))
	params.Set("units", "metric")
	if !opts.ArrivalTime.IsZero() {
		params.Set("arrival_time", strconv.FormatInt(opts.ArrivalTime.Unix(), 10))
	}
	params.Set("key", g.apiKey)
	endpoint := g.baseURL + "/maps/api/distancematrix/json?" + params.Encode()

	resp, err := g.client.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		// The request URL carries the API key; keep it out of the error.
		return eris.New("distance matrix request failed: " + redactKey(err.Error(), g.apiKey))
	}
	defer resp.Body.Close()

	var gr googleMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return eris.Wrap(err, "decode distance matrix response")
	}
	if gr.Status != "OK" {
		return eris.Errorf("distance matrix status %s: %s", gr.Status, gr.ErrorMessage)
	}
	if len(gr.Rows) != len(positions) {
		return eris.Errorf("expected %d rows; got %d", len(positions), len(gr.Rows))
	}

	for i, p := range positions {
		row := gr.Rows[i]
		if len(row.Elements) != 1 || row.Elements[0].Status != "OK" {
			continue
		}
		el := row.Elements[0]
		results[p] = ports.DistanceResult{
			DistanceKm:  el.Distance.Value / 1000,
			DurationMin: el.Duration.Value / 60,
			Status:      ports.StatusOK,
		}
	}
	return nil
}

func latLng(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 6, 64)
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}
