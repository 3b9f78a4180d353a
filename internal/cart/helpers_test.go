package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/storage"
)

var errStorageDown = errors.New("storage down")

// faultyBlobs wraps a memory store and fails reads or writes on demand.
type faultyBlobs struct {
	*storage.Memory

	mu        sync.Mutex
	failGet   bool
	failSet   bool
	sets      int
	lastWrite []byte
}

func newFaultyBlobs() *faultyBlobs {
	return &faultyBlobs{Memory: storage.NewMemory()}
}

func (f *faultyBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, errStorageDown
	}
	return f.Memory.Get(ctx, key)
}

func (f *faultyBlobs) Set(ctx context.Context, key string, payload []byte) error {
	f.mu.Lock()
	f.sets++
	fail := f.failSet
	if !fail {
		f.lastWrite = append([]byte(nil), payload...)
	}
	f.mu.Unlock()
	if fail {
		return errStorageDown
	}
	return f.Memory.Set(ctx, key, payload)
}

func (f *faultyBlobs) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testEngine() *pricing.Engine {
	return pricing.NewEngine(pricing.Policy{
		Currency:              currency.USD,
		FreeShippingThreshold: decimal.NewNullDecimal(dec("150")),
		FlatShippingFee:       dec("9.99"),
		TaxRate:               dec("0.1"),
	}, nil, zerolog.Nop())
}

func newTestStore(t *testing.T, blobs storage.BlobStore) *Store {
	t.Helper()
	return NewStore(StoreConfig{
		Key:     "cart:test",
		Blobs:   blobs,
		Pricing: testEngine(),
		Logger:  zerolog.Nop(),
		IDs:     sequentialIDs(),
	})
}

func product(id string, price string, variations map[string]string) ItemInput {
	return ItemInput{
		ProductID:  id,
		Name:       "Product " + id,
		Slug:       "product-" + id,
		Price:      dec(price),
		Variations: variations,
	}
}
