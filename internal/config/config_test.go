package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/noah-isme/toko-cart/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"CART_STORAGE_DRIVER":             "memory",
		"PORT":                            "",
		"CART_TTL":                        "",
		"PRICING_CURRENCY":                "",
		"PRICING_FREE_SHIPPING_THRESHOLD": "",
		"PRICING_FLAT_SHIPPING_FEE":       "",
		"PRICING_TAX_RATE":                "",
		"RATE_LIMIT_STRATEGY":             "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, config.StorageMemory, cfg.Cart.StorageDriver)
	require.Equal(t, 168*time.Hour, cfg.Cart.TTL)
	require.Equal(t, "cart", cfg.Cart.StoragePrefix)
	require.Equal(t, "sliding", cfg.RateLimit.Strategy)

	policy := cfg.Pricing.Policy()
	require.Equal(t, currency.USD, policy.Currency)
	require.False(t, policy.FreeShippingThreshold.Valid)
	require.True(t, policy.FlatShippingFee.IsZero())
	require.True(t, policy.TaxRate.IsZero())
}

func TestLoadPricing(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"CART_STORAGE_DRIVER":             "memory",
		"PRICING_CURRENCY":                "idr",
		"PRICING_FREE_SHIPPING_THRESHOLD": "150",
		"PRICING_FLAT_SHIPPING_FEE":       "9.99",
		"PRICING_TAX_RATE":                "0.11",
		"PRICING_SHIP_EMPTY_CART":         "true",
		"PRICING_SHIPPING_RULE":           " subtotal > 100 ? 0 : 5 ",
	})
	require.NoError(t, err)
	require.Equal(t, currency.IDR, cfg.Pricing.Currency)
	require.True(t, cfg.Pricing.FreeShippingThreshold.Decimal.Equal(decimal.NewFromInt(150)))
	require.True(t, cfg.Pricing.FlatShippingFee.Equal(decimal.RequireFromString("9.99")))
	require.True(t, cfg.Pricing.TaxRate.Equal(decimal.RequireFromString("0.11")))
	require.True(t, cfg.Pricing.ShipEmptyCart)
	require.Equal(t, "subtotal > 100 ? 0 : 5", cfg.Pricing.ShippingRule)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []map[string]string{
		{"CART_STORAGE_DRIVER": "mongo"},
		{"CART_STORAGE_DRIVER": "redis", "REDIS_URL": ""},
		{"CART_STORAGE_DRIVER": "postgres", "DATABASE_URL": ""},
		{"CART_STORAGE_DRIVER": "memory", "PRICING_TAX_RATE": "-0.1"},
		{"CART_STORAGE_DRIVER": "memory", "PRICING_CURRENCY": "dollars"},
		{"CART_STORAGE_DRIVER": "memory", "RATE_LIMIT_STRATEGY": "token"},
	}
	for _, env := range cases {
		_, err := config.LoadForTests(env)
		require.Error(t, err, "env %v", env)
	}
}
