package cache

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "eceopt:dist"

// RedisDistanceCache keeps one hash per (mode, destination); fields are
// origin keys and values are "km,minutes". The hash expires ttl after its
// last write, so a busy destination stays cached as a unit.
type RedisDistanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDistanceCache(client redis.UniversalClient, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{client: client, ttl: ttl}
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	origins []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.redis.GetMany")(&err)

	if err := checkDestination("get distance cache", destination); err != nil {
		return nil, err
	}

	uniq := uniqueKeys(origins)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	vals, err := c.client.HMGet(ctx, hashKey(mode, destination), uniq...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "get distance cache: hmget")
	}

	out := make(map[string]ports.DistanceResult, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		r, err := decodeResult(s)
		if err != nil {
			return nil, eris.Wrapf(err, "get distance cache: origin=%q", uniq[i])
		}
		out[uniq[i]] = r
	}
	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	mode ports.TravelMode,
	destination string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.cache.redis.PutMany")(&err)

	if err := checkDestination("insert distance cache", destination); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	fields := make([]any, 0, 2*len(results))
	for _, origin := range slices.Sorted(maps.Keys(results)) {
		if strings.TrimSpace(origin) == "" {
			return eris.New("insert distance cache: empty origin key")
		}
		fields = append(fields, origin, encodeResult(results[origin]))
	}

	key := hashKey(mode, destination)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields...)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "insert distance cache: exec pipeline")
	}
	return nil
}

func hashKey(mode ports.TravelMode, destination string) string {
	return redisKeyPrefix + ":" + string(mode) + ":" + destination
}

func encodeResult(r ports.DistanceResult) string {
	return strconv.FormatFloat(r.DistanceKm, 'g', -1, 64) + "," + strconv.FormatFloat(r.DurationMin, 'g', -1, 64)
}

func decodeResult(s string) (ports.DistanceResult, error) {
	kmStr, minStr, ok := strings.Cut(s, ",")
	if !ok {
		return ports.DistanceResult{}, eris.Errorf("malformed cache value %q", s)
	}
	km, err := strconv.ParseFloat(kmStr, 64)
	if err != nil {
		return ports.DistanceResult{}, eris.Wrapf(err, "malformed cache value %q", s)
	}
	minutes, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return ports.DistanceResult{}, eris.Wrapf(err, "malformed cache value %q", s)
	}
	return ports.DistanceResult{DistanceKm: km, DurationMin: minutes, Status: ports.StatusOK}, nil
}
