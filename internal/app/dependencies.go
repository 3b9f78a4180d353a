package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/storage"
)

const storageAttempts = 3

// Options tunes optional instrumentation during Build.
type Options struct {
	RedisMetrics bool
}

// Dependencies enumerates the services shared by the HTTP server and tools.
type Dependencies struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Blobs     storage.BlobStore
	Breaker   *resilience.Breaker
	Pricing   *pricing.Engine
	Registry  *cart.Registry
	Validator *validator.Validate
	Limiter   ratelimit.Limiter

	closers []func()
}

// Build connects the configured storage backend and assembles the cart
// services. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	deps := &Dependencies{Config: cfg, Validator: cart.NewValidator()}

	if cfg.RedisURL != "" {
		client, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil {
			if cfg.Cart.StorageDriver == config.StorageRedis {
				return nil, err
			}
			logger.Warn().Err(err).Msg("redis unavailable, idempotency and shared rate limits disabled")
		} else {
			deps.Redis = client
			deps.closers = append(deps.closers, func() {
				if err := client.Close(); err != nil {
					logger.Error().Err(err).Msg("close redis")
				}
			})
		}
	}

	var raw storage.BlobStore
	switch cfg.Cart.StorageDriver {
	case config.StorageRedis:
		raw = storage.NewRedis(deps.Redis, cfg.Cart.TTL)
	case config.StoragePostgres:
		if cfg.DBAutoMigrate {
			if err := storage.Migrate(cfg.DatabaseURL); err != nil {
				deps.Close()
				return nil, err
			}
		}
		pool, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.DB = pool
		deps.closers = append(deps.closers, pool.Close)
		raw = storage.NewPostgres(pool, cfg.Cart.TTL)
	default:
		raw = storage.NewMemory()
	}

	deps.Breaker = resilience.NewBreaker(cfg.Breaker.MinRequests, cfg.Breaker.FailureRatio, cfg.Breaker.OpenFor).
		WithTarget("cart_storage_" + cfg.Cart.StorageDriver).
		WithLogger(logger)
	deps.Blobs = &storage.Guarded{
		Store:    raw,
		Breaker:  deps.Breaker,
		Attempts: storageAttempts,
		Backoff:  50 * time.Millisecond,
	}

	rules, err := pricing.CompileRules(cfg.Pricing.ShippingRule, cfg.Pricing.TaxRule)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("compile pricing rules: %w", err)
	}
	deps.Pricing = pricing.NewEngine(cfg.Pricing.Policy(), rules, logger)

	deps.Registry = cart.NewRegistry(cart.RegistryConfig{
		Prefix:      cfg.Cart.StoragePrefix,
		Blobs:       deps.Blobs,
		Pricing:     deps.Pricing,
		Logger:      logger,
		MaxSessions: cfg.Cart.MaxSessions,
	})

	limiter, err := NewLimiter(cfg.RateLimit, deps.Redis, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Limiter = limiter

	return deps, nil
}

// Close releases connections in reverse order of acquisition.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// NewRedis dials Redis with tracing and optional metrics instrumentation.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewPostgres opens a traced pgx pool.
func NewPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-cart"

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewLimiter selects the rate limiter for cart writes. Without Redis every
// strategy degrades to a process-local fixed window.
func NewLimiter(cfg config.RateLimitConfig, client *redis.Client, logger zerolog.Logger) (ratelimit.Limiter, error) {
	const prefix = "rl:cart:"
	switch cfg.Strategy {
	case "off":
		return nil, nil
	case "fixed":
		if client == nil {
			return ratelimit.NewMemoryFixedWindow(prefix), nil
		}
		return ratelimit.NewRedisFixedWindow(client, prefix)
	default:
		if client == nil {
			logger.Warn().Msg("sliding rate limit needs redis, using in-memory fixed window")
			return ratelimit.NewMemoryFixedWindow(prefix), nil
		}
		return ratelimit.SlidingRedis{Client: client, Prefix: prefix}, nil
	}
}
