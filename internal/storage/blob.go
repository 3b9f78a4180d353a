package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports that no blob is stored under the requested key.
var ErrNotFound = errors.New("storage: blob not found")

// BlobStore persists opaque payloads under string keys.
type BlobStore interface {
	// Get returns the payload stored for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the payload stored for key.
	Set(ctx context.Context, key string, payload []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping checks that the backing service is reachable.
	Ping(ctx context.Context) error
}

// Key joins a namespace prefix with an identifier.
func Key(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + ":" + id
}
