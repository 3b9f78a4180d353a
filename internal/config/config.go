package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// Storage drivers accepted by CART_STORAGE_DRIVER.
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	DBAutoMigrate      bool
	CORSAllowedOrigins []string
	CookieSecure       bool

	Cart      CartConfig
	Pricing   PricingConfig
	Idem      IdempotencyConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig

	BodyLimitBytes int64
}

// CartConfig controls cart persistence and session resolution.
type CartConfig struct {
	StorageDriver string
	StoragePrefix string
	TTL           time.Duration
	MaxSessions   int
	SessionHeader string
	SessionCookie string
}

// PricingConfig is the shipping and tax policy. Amounts are validated on load.
type PricingConfig struct {
	Currency              currency.Unit
	FreeShippingThreshold decimal.NullDecimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	ShipEmptyCart         bool
	ShippingRule          string
	TaxRule               string
}

// Policy converts the configuration into a pricing policy.
func (p PricingConfig) Policy() pricing.Policy {
	return pricing.Policy{
		Currency:              p.Currency,
		FreeShippingThreshold: p.FreeShippingThreshold,
		FlatShippingFee:       p.FlatShippingFee,
		TaxRate:               p.TaxRate,
		ShipEmptyCart:         p.ShipEmptyCart,
	}
}

// IdempotencyConfig controls the Idempotency-Key middleware.
type IdempotencyConfig struct {
	TTL time.Duration
}

// RateLimitConfig controls per-session throttling of cart writes.
type RateLimitConfig struct {
	Strategy string
	Window   time.Duration
	Max      int
}

// BreakerConfig tunes the circuit breaker guarding cart storage.
type BreakerConfig struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		Cart: CartConfig{
			StorageDriver: strings.ToLower(valueOrDefault(k.String("CART_STORAGE_DRIVER"), StorageRedis)),
			StoragePrefix: valueOrDefault(k.String("CART_STORAGE_PREFIX"), "cart"),
			TTL:           parseDuration(k.String("CART_TTL"), "168h"),
			MaxSessions:   common.AtoiDefault(k.String("CART_MAX_SESSIONS"), 10000),
			SessionHeader: valueOrDefault(k.String("CART_SESSION_HEADER"), "X-Cart-Session"),
			SessionCookie: valueOrDefault(k.String("CART_SESSION_COOKIE"), "cart_session"),
		},
		Idem: IdempotencyConfig{
			TTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		},
		RateLimit: RateLimitConfig{
			Strategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
			Window:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
			Max:      common.AtoiDefault(k.String("RATE_LIMIT_MAX"), 120),
		},
		Breaker: BreakerConfig{
			MinRequests:  common.AtoiDefault(k.String("STORAGE_BREAKER_MIN_REQUESTS"), 10),
			FailureRatio: parseFloat(k.String("STORAGE_BREAKER_FAILURE_RATIO"), 0.5),
			OpenFor:      parseDuration(k.String("STORAGE_BREAKER_OPEN_FOR"), "30s"),
		},
		BodyLimitBytes: int64(common.AtoiDefault(k.String("BODY_LIMIT_BYTES"), 64<<10)),
	}

	pricingCfg, err := loadPricing(k)
	if err != nil {
		return nil, err
	}
	cfg.Pricing = pricingCfg

	switch cfg.Cart.StorageDriver {
	case StorageRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when CART_STORAGE_DRIVER=redis")
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when CART_STORAGE_DRIVER=postgres")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("unsupported CART_STORAGE_DRIVER %q", cfg.Cart.StorageDriver)
	}

	switch cfg.RateLimit.Strategy {
	case "sliding", "fixed", "off":
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_STRATEGY %q", cfg.RateLimit.Strategy)
	}

	return cfg, nil
}

func loadPricing(k *koanf.Koanf) (PricingConfig, error) {
	unit, err := pricing.ParseCurrency(valueOrDefault(k.String("PRICING_CURRENCY"), "USD"))
	if err != nil {
		return PricingConfig{}, fmt.Errorf("PRICING_CURRENCY: %w", err)
	}
	threshold, err := pricing.ParseAmount(k.String("PRICING_FREE_SHIPPING_THRESHOLD"))
	if err != nil {
		return PricingConfig{}, fmt.Errorf("PRICING_FREE_SHIPPING_THRESHOLD: %w", err)
	}
	fee, err := pricing.ParseAmount(k.String("PRICING_FLAT_SHIPPING_FEE"))
	if err != nil {
		return PricingConfig{}, fmt.Errorf("PRICING_FLAT_SHIPPING_FEE: %w", err)
	}
	rate, err := pricing.ParseAmount(k.String("PRICING_TAX_RATE"))
	if err != nil {
		return PricingConfig{}, fmt.Errorf("PRICING_TAX_RATE: %w", err)
	}
	return PricingConfig{
		Currency:              unit,
		FreeShippingThreshold: threshold,
		FlatShippingFee:       fee.Decimal,
		TaxRate:               rate.Decimal,
		ShipEmptyCart:         parseBool(k.String("PRICING_SHIP_EMPTY_CART")),
		ShippingRule:          strings.TrimSpace(k.String("PRICING_SHIPPING_RULE")),
		TaxRule:               strings.TrimSpace(k.String("PRICING_TAX_RULE")),
	}, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
