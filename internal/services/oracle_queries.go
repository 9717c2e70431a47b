package services

import (
	"context"

	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// queryOracle resolves every non-skipped query and returns one result per
// query, in order. Skipped queries come back StatusSkipped without touching
// the oracle. Individual failures, timeouts included, become StatusFailed;
// the only error returned is cancellation of ctx.
func queryOracle(ctx context.Context, oracle ports.DistanceOracle, queries []ports.DistanceQuery, cfg EngineConfig) ([]ports.DistanceResult, error) {
	results := make([]ports.DistanceResult, len(queries))
	active := 0
	for i, q := range queries {
		if q.Skip {
			results[i] = ports.DistanceResult{Status: ports.StatusSkipped}
			continue
		}
		results[i] = ports.DistanceResult{Status: ports.StatusFailed}
		active++
	}
	if active == 0 {
		return results, nil
	}

	// Prefer batched lookups when supported.
	if mo, ok := oracle.(ports.DistanceMatrixOracle); ok {
		got, err := mo.GetDistances(ctx, queries, cfg.Travel)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			zap.L().Warn("batched oracle lookup failed", append(obs.Fields(ctx),
				zap.Int("queries", active), zap.Error(err))...)
			return results, nil
		}
		if len(got) != len(queries) {
			zap.L().Warn("batched oracle returned wrong result count", append(obs.Fields(ctx),
				zap.Int("want", len(queries)), zap.Int("got", len(got)))...)
			return results, nil
		}
		for i, q := range queries {
			if q.Skip {
				continue
			}
			results[i] = sanitize(got[i])
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, q := range queries {
		if q.Skip {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			callCtx, cancel := context.WithTimeout(gctx, cfg.CallTimeout)
			defer cancel()

			r, err := oracle.GetDistance(callCtx, q.Origin, q.Destination, cfg.Travel)
			if err != nil {
				zap.L().Debug("oracle lookup failed", append(obs.Fields(ctx),
					zap.String("origin", q.Origin.Key()), zap.Error(err))...)
				return nil
			}
			results[i] = sanitize(r)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// sanitize downgrades OK results that carry unusable numbers.
func sanitize(r ports.DistanceResult) ports.DistanceResult {
	if r.Status == ports.StatusOK && !(r.DurationMin >= 0 && r.DistanceKm >= 0) {
		return ports.DistanceResult{Status: ports.StatusFailed}
	}
	return r
}
