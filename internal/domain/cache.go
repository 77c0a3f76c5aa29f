package domain

import (
	"context"
	"time"
)

// Cache defines the interface (port) for caching operations.
// Implementations of this interface will be the adapters (e.g., RedisCacheAdapter).
type Cache interface {
	// PushCapped prepends value to the list stored at key and trims the list
	// to its newest max entries. A positive expiration refreshes the key TTL.
	PushCapped(ctx context.Context, key string, value string, max int64, expiration time.Duration) error

	// ListRange returns every element of the list at key, newest first.
	// A missing key yields an empty slice and no error.
	ListRange(ctx context.Context, key string) ([]string, error)

	// Delete removes an item from the cache.
	// It should not return an error if the key is not found.
	Delete(ctx context.Context, key string) error

	// Ping checks the health of the cache service.
	Ping(ctx context.Context) error
}
