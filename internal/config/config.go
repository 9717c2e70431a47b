package config

import (
	"net/http"
	"strings"
	"time"

	"ece-placement-service/internal/adapters/distance"
	"ece-placement-service/internal/ports"
	"ece-placement-service/internal/services"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	CacheNone  = "none"
	CacheSQL   = "sql"
	CacheRedis = "redis"
)

// arrivalLayout is the local wall-clock layout of oracle.arrival_time.
const arrivalLayout = "2006-01-02T15:04:05"

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig selects where tracts and runs live.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SeedPath    string `yaml:"seed_path" mapstructure:"seed_path"`
}

// CacheConfig selects the distance cache. "sql" uses the store's database.
type CacheConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	TTLHours  int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the cache entry lifetime; zero means entries never expire.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// RedisOptions accepts either a redis:// URL or a bare host:port.
func (c CacheConfig) RedisOptions() (*redis.Options, error) {
	if strings.Contains(c.RedisAddr, "://") {
		opts, err := redis.ParseURL(c.RedisAddr)
		if err != nil {
			return nil, eris.Wrap(err, "config: parse redis url")
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisAddr}, nil
}

type OracleConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	ORSAPIKey       string  `yaml:"ors_api_key" mapstructure:"ors_api_key"`
	GoogleAPIKey    string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	ArrivalTime     string  `yaml:"arrival_time" mapstructure:"arrival_time"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst           int     `yaml:"burst" mapstructure:"burst"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	BatchSize       int     `yaml:"batch_size" mapstructure:"batch_size"`
	Circuity        float64 `yaml:"circuity" mapstructure:"circuity"`
	SpeedKph        float64 `yaml:"speed_kph" mapstructure:"speed_kph"`
}

// Settings converts the oracle section for the distance adapter factory.
func (o OracleConfig) Settings(client *http.Client) distance.Settings {
	return distance.Settings{
		Provider:     o.Provider,
		ORSAPIKey:    o.ORSAPIKey,
		GoogleAPIKey: o.GoogleAPIKey,
		BaseURL:      o.BaseURL,
		BatchSize:    o.BatchSize,
		RateLimit:    o.RateLimit,
		Burst:        o.Burst,
		Circuity:     o.Circuity,
		SpeedKph:     o.SpeedKph,
		HTTPClient:   client,
	}
}

// Arrival parses oracle.arrival_time in local time. Blank means no arrival
// constraint.
func (o OracleConfig) Arrival() (time.Time, error) {
	if strings.TrimSpace(o.ArrivalTime) == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(arrivalLayout, o.ArrivalTime, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse oracle.arrival_time %q", o.ArrivalTime)
	}
	return t, nil
}

type OptimizerConfig struct {
	Centers         int     `yaml:"centers" mapstructure:"centers"`
	Optimized       bool    `yaml:"optimized" mapstructure:"optimized"`
	CandidateWindow int     `yaml:"candidate_window" mapstructure:"candidate_window"`
	PruneFactor     float64 `yaml:"prune_factor" mapstructure:"prune_factor"`
	NominalMinutes  float64 `yaml:"nominal_minutes" mapstructure:"nominal_minutes"`
	NominalKm       float64 `yaml:"nominal_km" mapstructure:"nominal_km"`
	PopulationBoost float64 `yaml:"population_boost" mapstructure:"population_boost"`
}

// Engine builds the placement engine settings from the optimizer and oracle
// sections.
func (c *Config) Engine() (services.EngineConfig, error) {
	arrival, err := c.Oracle.Arrival()
	if err != nil {
		return services.EngineConfig{}, err
	}
	return services.EngineConfig{
		CandidateWindow: c.Optimizer.CandidateWindow,
		PruneFactor:     c.Optimizer.PruneFactor,
		NominalMinutes:  c.Optimizer.NominalMinutes,
		NominalKm:       c.Optimizer.NominalKm,
		PopulationBoost: c.Optimizer.PopulationBoost,
		Concurrency:     c.Oracle.Concurrency,
		CallTimeout:     time.Duration(c.Oracle.CallTimeoutSecs) * time.Second,
		Travel: ports.TravelOptions{
			Mode:        ports.TravelMode(c.Oracle.Mode),
			ArrivalTime: arrival,
		},
	}, nil
}

// Load reads configuration from .env, an optional config.yaml and the
// ECEOPT_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file found (using environment variables)")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ECEOPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "data/app.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.seed_path", "data/seeds/tracts.csv")
	v.SetDefault("cache.backend", CacheSQL)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl_hours", 720)
	v.SetDefault("oracle.provider", distance.ProviderORS)
	v.SetDefault("oracle.ors_api_key", "")
	v.SetDefault("oracle.google_api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.mode", string(ports.TravelDriving))
	v.SetDefault("oracle.arrival_time", "2024-04-11T09:00:00")
	v.SetDefault("oracle.rate_limit", 10.0)
	v.SetDefault("oracle.burst", 10)
	v.SetDefault("oracle.concurrency", 4)
	v.SetDefault("oracle.call_timeout_secs", 10)
	v.SetDefault("oracle.batch_size", 25)
	v.SetDefault("oracle.circuity", 1.3)
	v.SetDefault("oracle.speed_kph", 40.0)
	v.SetDefault("optimizer.centers", 3)
	v.SetDefault("optimizer.optimized", true)
	v.SetDefault("optimizer.candidate_window", 150)
	v.SetDefault("optimizer.prune_factor", 1.5)
	v.SetDefault("optimizer.nominal_minutes", 1.0)
	v.SetDefault("optimizer.nominal_km", 0.1)
	v.SetDefault("optimizer.population_boost", 50.0)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings the optimizer or the adapters cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return eris.New("config: store.sqlite_path is required for sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheSQL:
	case CacheRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return eris.New("config: cache.redis_addr is required for redis")
		}
	default:
		return eris.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLHours < 0 {
		return eris.New("config: cache.ttl_hours must not be negative")
	}

	switch c.Oracle.Provider {
	case distance.ProviderORS:
		if strings.TrimSpace(c.Oracle.ORSAPIKey) == "" {
			return eris.New("config: oracle.ors_api_key is required for ors")
		}
	case distance.ProviderGoogle:
		if strings.TrimSpace(c.Oracle.GoogleAPIKey) == "" {
			return eris.New("config: oracle.google_api_key is required for google")
		}
	case distance.ProviderEstimate:
	default:
		return eris.Errorf("config: unknown oracle.provider %q", c.Oracle.Provider)
	}

	switch ports.TravelMode(c.Oracle.Mode) {
	case ports.TravelDriving, ports.TravelWalking, ports.TravelBicycling, ports.TravelTransit:
	default:
		return eris.Errorf("config: unknown oracle.mode %q", c.Oracle.Mode)
	}
	if _, err := c.Oracle.Arrival(); err != nil {
		return err
	}

	if c.Optimizer.CandidateWindow <= 0 {
		return eris.New("config: optimizer.candidate_window must be positive")
	}
	if c.Optimizer.PruneFactor <= 0 {
		return eris.New("config: optimizer.prune_factor must be positive")
	}
	if c.Optimizer.Centers < 0 {
		return eris.New("config: optimizer.centers must not be negative")
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
