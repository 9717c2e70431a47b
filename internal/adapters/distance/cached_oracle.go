package distance

import (
	"context"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/metrics"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"go.uber.org/zap"
)

// CachedOracle serves answers from a DistanceCache and asks the wrapped
// oracle only for misses. Only successful answers are stored. Cache errors
// are logged and the lookup proceeds uncached.
type CachedOracle struct {
	inner ports.DistanceOracle
	cache ports.DistanceCache
}

type cachedMatrixOracle struct {
	*CachedOracle
	matrix ports.DistanceMatrixOracle
}

// NewCachedOracle wraps inner. The result supports batched lookups when
// inner does.
func NewCachedOracle(inner ports.DistanceOracle, cache ports.DistanceCache) ports.DistanceOracle {
	c := &CachedOracle{inner: inner, cache: cache}
	if mo, ok := inner.(ports.DistanceMatrixOracle); ok {
		return &cachedMatrixOracle{CachedOracle: c, matrix: mo}
	}
	return c
}

func (c *CachedOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	okey := origin.Key()
	if hit, ok := c.lookup(ctx, opts.Mode, destination, []string{okey})[okey]; ok {
		return hit, nil
	}

	r, err := c.inner.GetDistance(ctx, origin, destination, opts)
	if err != nil {
		return r, err
	}
	if r.OK() {
		c.store(ctx, opts.Mode, destination, map[string]ports.DistanceResult{okey: r})
	}
	return r, nil
}

func (c *cachedMatrixOracle) GetDistances(ctx context.Context, queries []ports.DistanceQuery, opts ports.TravelOptions) ([]ports.DistanceResult, error) {
	results := initResults(queries)

	// Queries answered from cache are skipped in the forwarded batch.
	forward := make([]ports.DistanceQuery, len(queries))
	copy(forward, queries)
	pending, served := 0, 0

	for _, g := range groupByDestination(queries) {
		keys := make([]string, len(g.positions))
		for i, p := range g.positions {
			keys[i] = queries[p].Origin.Key()
		}
		hits := c.lookup(ctx, opts.Mode, g.destination, keys)
		for i, p := range g.positions {
			if hit, ok := hits[keys[i]]; ok {
				results[p] = hit
				forward[p].Skip = true
				served++
				continue
			}
			pending++
		}
	}
	if pending == 0 {
		return results, nil
	}

	// A failed batch forfeits only the misses; hits already in results stand.
	fetched, err := c.matrix.GetDistances(ctx, forward, opts)
	if err != nil {
		if served == 0 {
			return nil, err
		}
		zap.L().Warn("distance batch failed, serving cached answers only",
			append(obs.Fields(ctx),
				zap.Int("cached", served),
				zap.Int("failed", pending),
				zap.Error(err),
			)...,
		)
		return results, nil
	}
	if len(fetched) != len(queries) {
		return results, nil
	}

	fresh := make(map[string]map[string]ports.DistanceResult)
	dests := make(map[string]domain.Coordinates)
	for i, q := range forward {
		if q.Skip {
			continue
		}
		results[i] = fetched[i]
		if !fetched[i].OK() {
			continue
		}
		dk := q.Destination.Key()
		if fresh[dk] == nil {
			fresh[dk] = make(map[string]ports.DistanceResult)
			dests[dk] = q.Destination
		}
		fresh[dk][q.Origin.Key()] = fetched[i]
	}
	for dk, rows := range fresh {
		c.store(ctx, opts.Mode, dests[dk], rows)
	}
	return results, nil
}

func (c *CachedOracle) lookup(ctx context.Context, mode ports.TravelMode, destination domain.Coordinates, origins []string) map[string]ports.DistanceResult {
	hits, err := c.cache.GetMany(ctx, normalizeMode(mode), destination.Key(), origins)
	if err != nil {
		zap.L().Warn("distance cache read failed", append(obs.Fields(ctx), zap.Error(err))...)
		return nil
	}
	metrics.OracleCacheHits.Add(float64(len(hits)))
	return hits
}

func (c *CachedOracle) store(ctx context.Context, mode ports.TravelMode, destination domain.Coordinates, rows map[string]ports.DistanceResult) {
	if err := c.cache.PutMany(ctx, normalizeMode(mode), destination.Key(), rows); err != nil {
		zap.L().Warn("distance cache write failed", append(obs.Fields(ctx), zap.Error(err))...)
	}
}
