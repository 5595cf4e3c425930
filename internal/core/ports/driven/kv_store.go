package driven

import (
	"context"
)

// KeyValueStore is the durable local storage behind the persistence gateway.
// It holds the autosave slot and the per-report media payload keys.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	// Returns an error wrapping domain.ErrStorageQuotaExceeded when the store
	// refuses the write for lack of space; the previous value is left intact.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Usage reports bytes currently stored and the quota (0 = unlimited).
	Usage(ctx context.Context) (used, quota int64, err error)

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error
}
