package storage

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/toko-cart/internal/resilience"
)

// Guarded wraps a BlobStore with a circuit breaker and retries writes with
// exponential backoff. A missing blob counts as a successful call.
type Guarded struct {
	Store    BlobStore
	Breaker  *resilience.Breaker
	Attempts int
	Backoff  time.Duration
}

func (g *Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		payload []byte
		found   bool
	)
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		data, err := g.Store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		payload, found = data, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (g *Guarded) Set(ctx context.Context, key string, payload []byte) error {
	return g.retry(ctx, func(ctx context.Context) error {
		return g.Store.Set(ctx, key, payload)
	})
}

func (g *Guarded) Delete(ctx context.Context, key string) error {
	return g.retry(ctx, func(ctx context.Context) error {
		return g.Store.Delete(ctx, key)
	})
}

func (g *Guarded) Ping(ctx context.Context) error {
	return g.Store.Ping(ctx)
}

func (g *Guarded) retry(ctx context.Context, fn func(context.Context) error) error {
	attempts := g.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = g.Breaker.Do(ctx, fn)
		if err == nil || errors.Is(err, resilience.ErrOpenCircuit) {
			return err
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(resilience.Backoff(g.Backoff, attempt, 0.2))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
