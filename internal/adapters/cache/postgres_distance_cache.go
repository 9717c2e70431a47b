package cache

import (
	"context"
	"maps"
	"slices"
	"time"

	"ece-placement-service/internal/platform/db"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
)

// PostgresDistanceCache is a Postgres-backed cache of oracle answers.
// Entries older than ttl are treated as misses; a zero ttl never expires.
type PostgresDistanceCache struct {
	pool db.Pool
	ttl  time.Duration
	now  func() time.Time
}

func NewPostgresDistanceCache(pool db.Pool, ttl time.Duration) *PostgresDistanceCache {
	return &PostgresDistanceCache{pool: pool, ttl: ttl, now: time.Now}
}

// Fetch cached results for many origins to one destination.
func (s *PostgresDistanceCache) GetMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	origins []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.pg.GetMany")(&err)

	if err := checkDestination("get distance cache", destination); err != nil {
		return nil, err
	}

	uniq := uniqueKeys(origins)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	var cutoff time.Time
	if s.ttl > 0 {
		cutoff = s.now().Add(-s.ttl)
	}

	rows, err := s.pool.Query(ctx, `
	SELECT origin, distance_km, duration_min
	FROM distance_cache
	WHERE mode = $1
		AND destination = $2
		AND origin = ANY($3::text[])
		AND fetched_at >= $4`,
		string(mode), destination, uniq, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "get distance cache: query distance_cache table")
	}
	defer rows.Close()

	out := make(map[string]ports.DistanceResult, len(uniq))
	for rows.Next() {
		var origin string
		var km, minutes float64
		if err := rows.Scan(&origin, &km, &minutes); err != nil {
			return nil, eris.Wrap(err, "get distance cache: scan rows")
		}
		out[origin] = ports.DistanceResult{DistanceKm: km, DurationMin: minutes, Status: ports.StatusOK}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "get distance cache: row iteration")
	}

	return out, nil
}

// Store results for many origins to one destination.
func (s *PostgresDistanceCache) PutMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.cache.pg.PutMany")(&err)

	if err := checkDestination("insert distance cache", destination); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "insert distance cache: db begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()
	for _, origin := range slices.Sorted(maps.Keys(results)) {
		r := results[origin]
		if origin == "" {
			return eris.New("insert distance cache: empty origin key")
		}
		if _, err := tx.Exec(ctx, `
		INSERT INTO distance_cache (mode, destination, origin, distance_km, duration_min, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mode, destination, origin) DO UPDATE
		SET distance_km = EXCLUDED.distance_km,
			duration_min = EXCLUDED.duration_min,
			fetched_at = EXCLUDED.fetched_at`,
			string(mode), destination, origin, r.DistanceKm, r.DurationMin, now,
		); err != nil {
			return eris.Wrapf(err, "insert distance cache origin=%q", origin)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "insert distance cache commit")
	}
	return nil
}
