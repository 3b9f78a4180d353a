package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/storage"
)

type dumped struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Subtotal  json.Number `json:"subtotal"`
	ItemCount int         `json:"itemCount"`
}

func seededRegistry(t *testing.T, blobs storage.BlobStore) *cart.Registry {
	t.Helper()
	reg := cart.NewRegistry(cart.RegistryConfig{
		Prefix:  "cart",
		Blobs:   blobs,
		Pricing: pricing.NewEngine(pricing.Policy{}, nil, zerolog.Nop()),
		Logger:  zerolog.Nop(),
	})
	store, release := reg.Acquire(context.Background(), "s1")
	defer release()
	store.AddItem(context.Background(), cart.ItemInput{ProductID: "p1", Name: "Mug", Price: decimal.RequireFromString("29.99")}, 3)
	return reg
}

func TestDumpPrintsCart(t *testing.T) {
	blobs := storage.NewMemory()
	reg := seededRegistry(t, blobs)

	var out bytes.Buffer
	require.NoError(t, dump(context.Background(), reg, "s1", false, &out))

	var got dumped
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Items, 1)
	require.Equal(t, "p1", got.Items[0].ProductID)
	require.Equal(t, 3, got.ItemCount)
	require.Equal(t, "89.97", got.Subtotal.String())
}

func TestDumpClearPersistsEmptyCart(t *testing.T) {
	blobs := storage.NewMemory()
	reg := seededRegistry(t, blobs)

	var out bytes.Buffer
	require.NoError(t, dump(context.Background(), reg, "s1", true, &out))
	require.Contains(t, out.String(), `"p1"`)

	data, err := blobs.Get(context.Background(), "cart:s1")
	require.NoError(t, err)
	doc, err := cart.Decode(data)
	require.NoError(t, err)
	require.Empty(t, doc.Items)
}
