package distance

import (
	"context"
	"time"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/metrics"
	"ece-placement-service/internal/ports"
)

// InstrumentedOracle records Prometheus request counts and latencies for
// the wrapped oracle under a provider label.
type InstrumentedOracle struct {
	inner    ports.DistanceOracle
	provider string
}

type instrumentedMatrixOracle struct {
	*InstrumentedOracle
	matrix ports.DistanceMatrixOracle
}

func NewInstrumentedOracle(inner ports.DistanceOracle, provider string) ports.DistanceOracle {
	o := &InstrumentedOracle{inner: inner, provider: provider}
	if mo, ok := inner.(ports.DistanceMatrixOracle); ok {
		return &instrumentedMatrixOracle{InstrumentedOracle: o, matrix: mo}
	}
	return o
}

func (o *InstrumentedOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	start := time.Now()
	r, err := o.inner.GetDistance(ctx, origin, destination, opts)
	o.observe(start)

	status := r.Status
	if err != nil {
		status = ports.StatusFailed
	}
	metrics.OracleRequests.WithLabelValues(o.provider, status.String()).Inc()
	return r, err
}

func (o *instrumentedMatrixOracle) GetDistances(ctx context.Context, queries []ports.DistanceQuery, opts ports.TravelOptions) ([]ports.DistanceResult, error) {
	start := time.Now()
	results, err := o.matrix.GetDistances(ctx, queries, opts)
	o.observe(start)

	if err != nil {
		active := 0
		for _, q := range queries {
			if !q.Skip {
				active++
			}
		}
		metrics.OracleRequests.WithLabelValues(o.provider, ports.StatusFailed.String()).Add(float64(active))
		return results, err
	}

	counts := make(map[ports.DistanceStatus]int)
	for _, r := range results {
		if r.Status != ports.StatusSkipped {
			counts[r.Status]++
		}
	}
	for s, n := range counts {
		metrics.OracleRequests.WithLabelValues(o.provider, s.String()).Add(float64(n))
	}
	return results, nil
}

func (o *InstrumentedOracle) observe(start time.Time) {
	metrics.OracleDuration.WithLabelValues(o.provider).Observe(time.Since(start).Seconds())
}
