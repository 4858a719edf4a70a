package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is the contract for the gateway's descriptor caches. Values are
// stored marshaled; Get unmarshals into dest. Entries are replaced
// wholesale, never mutated in place, so concurrent readers always see a
// complete value.
type Cache interface {
	// Get retrieves a value. Returns ErrMiss when absent or expired.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value with a TTL. A zero TTL means the entry never
	// expires for the life of the process.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error
}
