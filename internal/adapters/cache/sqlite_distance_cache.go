package cache

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
)

// SQLite caps bound parameters per statement; stay well below it.
const sqliteMaxOrigins = 500

// SQLite backed cache of oracle answers. Keys are coordinate keys and are
// expected to be normalized by the caller.
type SqliteDistanceCache struct {
	DB  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSqliteDistanceCache(db *sql.DB, ttl time.Duration) *SqliteDistanceCache {
	return &SqliteDistanceCache{DB: db, ttl: ttl, now: time.Now}
}

// Fetch cached results for many origins to one destination.
func (s *SqliteDistanceCache) GetMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	origins []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.sqlite.GetMany")(&err)

	if s.DB == nil {
		return nil, eris.New("distance cache: db is nil")
	}
	if err := checkDestination("get distance cache", destination); err != nil {
		return nil, err
	}

	uniq := uniqueKeys(origins)
	out := make(map[string]ports.DistanceResult, len(uniq))

	var cutoff int64
	if s.ttl > 0 {
		cutoff = s.now().Add(-s.ttl).Unix()
	}

	for len(uniq) > 0 {
		n := min(len(uniq), sqliteMaxOrigins)
		if err := s.getChunk(ctx, mode, destination, uniq[:n], cutoff, out); err != nil {
			return nil, err
		}
		uniq = uniq[n:]
	}

	return out, nil
}

func (s *SqliteDistanceCache) getChunk(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	origins []string,
	cutoff int64,
	out map[string]ports.DistanceResult,
) error {
	args := make([]any, 0, 3+len(origins))
	args = append(args, string(mode), destination, cutoff)
	for _, o := range origins {
		args = append(args, o)
	}

	// SQLite does not support binding slices directly in an IN (...) clause.
	// Only the placeholder structure is interpolated; all values remain parameterized.
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(origins)), ",")
	q := fmt.Sprintf(`
	SELECT origin, distance_km, duration_min
	FROM distance_cache
	WHERE mode = ?
		AND destination = ?
		AND fetched_at >= ?
		AND origin IN (%s);
	`, placeholders)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return eris.Wrap(err, "get distance cache: query distance_cache table")
	}
	defer rows.Close()

	for rows.Next() {
		var origin string
		var km, minutes float64
		if err := rows.Scan(&origin, &km, &minutes); err != nil {
			return eris.Wrap(err, "get distance cache: scan rows")
		}
		out[origin] = ports.DistanceResult{DistanceKm: km, DurationMin: minutes, Status: ports.StatusOK}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "get distance cache: row iteration")
	}
	return nil
}

// Store results for many origins to one destination.
func (s *SqliteDistanceCache) PutMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.cache.sqlite.PutMany")(&err)

	if s.DB == nil {
		return eris.New("distance cache: db is nil")
	}
	if err := checkDestination("insert distance cache", destination); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "insert distance cache: db begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO distance_cache (mode, destination, origin, distance_km, duration_min, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return eris.Wrap(err, "insert distance cache: db prepare")
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, origin := range slices.Sorted(maps.Keys(results)) {
		if strings.TrimSpace(origin) == "" {
			return eris.New("insert distance cache: empty origin key")
		}
		r := results[origin]
		if _, err := stmt.ExecContext(ctx, string(mode), destination, origin, r.DistanceKm, r.DurationMin, now); err != nil {
			return eris.Wrapf(err, "insert distance cache origin=%q", origin)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "insert distance cache commit")
	}
	return nil
}
