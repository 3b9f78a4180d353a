package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/storage"
)

type flakyStore struct {
	*storage.Memory
	failSets int
	sets     int
}

func (f *flakyStore) Set(ctx context.Context, key string, payload []byte) error {
	f.sets++
	if f.sets <= f.failSets {
		return errors.New("connection reset")
	}
	return f.Memory.Set(ctx, key, payload)
}

func TestGuardedRetriesWrites(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Memory: storage.NewMemory(), failSets: 2}
	guarded := &storage.Guarded{
		Store:    inner,
		Breaker:  resilience.NewBreaker(10, 0.9, time.Minute).WithTarget("guarded_retry"),
		Attempts: 3,
		Backoff:  time.Millisecond,
	}

	require.NoError(t, guarded.Set(ctx, "k", []byte("v")))
	require.Equal(t, 3, inner.sets)

	got, err := guarded.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestGuardedMissingBlobIsNotFailure(t *testing.T) {
	ctx := context.Background()
	breaker := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget("guarded_missing")
	guarded := &storage.Guarded{Store: storage.NewMemory(), Breaker: breaker}

	for i := 0; i < 3; i++ {
		_, err := guarded.Get(ctx, "absent")
		require.ErrorIs(t, err, storage.ErrNotFound)
	}
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestGuardedOpensCircuit(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Memory: storage.NewMemory(), failSets: 100}
	guarded := &storage.Guarded{
		Store:    inner,
		Breaker:  resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("guarded_open"),
		Attempts: 1,
	}

	require.Error(t, guarded.Set(ctx, "k", []byte("v")))
	require.Error(t, guarded.Set(ctx, "k", []byte("v")))
	err := guarded.Set(ctx, "k", []byte("v"))
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, inner.sets)
}
