package persistence

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when a key is absent or has expired.
	ErrKeyNotFound = errors.New("key not found")
	// ErrStoreUnavailable wraps transport failures of the backing store.
	ErrStoreUnavailable = errors.New("key-value store unavailable")
)

// KVStore is the ephemeral key-value contract shared by the revocation
// registry and the reset-token store. Implementations must be safe for
// concurrent use. A ttl <= 0 stores the value without expiry.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime, or 0 for keys without expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Take returns the value and removes the key in one atomic step.
	Take(ctx context.Context, key string) (string, error)
}
