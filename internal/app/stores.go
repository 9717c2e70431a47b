package app

import (
	"context"
	"net/http"
	"time"

	"ece-placement-service/internal/adapters/cache"
	"ece-placement-service/internal/adapters/distance"
	"ece-placement-service/internal/adapters/repositories"
	"ece-placement-service/internal/config"
	"ece-placement-service/internal/platform/db"
	"ece-placement-service/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store is a tract repository that also records runs.
type Store interface {
	ports.TractRepository
	ports.RunStore
}

// Stores bundles the persistence adapters selected by configuration.
type Stores struct {
	Repo  Store
	Cache ports.DistanceCache

	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured store and distance cache and makes
// sure the schema exists.
func OpenStores(ctx context.Context, cfg *config.Config) (_ *Stores, err error) {
	s := &Stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		conn, err := db.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "open stores")
		}
		s.closers = append(s.closers, func() { conn.Close() })

		if err := repositories.InitSchema(ctx, conn); err != nil {
			return nil, eris.Wrap(err, "open stores")
		}
		s.Repo = repositories.NewSqliteTractRepository(conn)
		if cfg.Cache.Backend == config.CacheSQL {
			s.Cache = cache.NewSqliteDistanceCache(conn, cfg.Cache.TTL())
		}
	case config.DriverPostgres:
		p, err := db.OpenPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open stores")
		}
		s.closers = append(s.closers, p.Close)

		if err := repositories.InitPostgresSchema(ctx, p); err != nil {
			return nil, eris.Wrap(err, "open stores")
		}
		s.Repo = repositories.NewPostgresTractRepository(p)
		if cfg.Cache.Backend == config.CacheSQL {
			s.Cache = cache.NewPostgresDistanceCache(p, cfg.Cache.TTL())
		}
	default:
		return nil, eris.Errorf("open stores: unknown driver %q", cfg.Store.Driver)
	}

	if cfg.Cache.Backend == config.CacheRedis {
		opts, err := cfg.Cache.RedisOptions()
		if err != nil {
			return nil, eris.Wrap(err, "open stores")
		}
		client := redis.NewClient(opts)
		s.closers = append(s.closers, func() { client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, eris.Wrap(err, "open stores: ping redis")
		}
		s.Cache = cache.NewRedisDistanceCache(client, cfg.Cache.TTL())
	}

	zap.L().Info("stores ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
	)
	return s, nil
}

// NewOracle builds the configured distance oracle over the given cache.
func NewOracle(cfg *config.Config, distCache ports.DistanceCache) (ports.DistanceOracle, error) {
	client := &http.Client{Timeout: time.Duration(max(1, cfg.Oracle.CallTimeoutSecs)) * time.Second}
	oracle, err := distance.NewOracle(cfg.Oracle.Settings(client), distCache)
	if err != nil {
		return nil, eris.Wrap(err, "new oracle")
	}
	return oracle, nil
}
