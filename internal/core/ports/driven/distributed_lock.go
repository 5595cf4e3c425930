package driven

import (
	"context"
	"time"
)

// DistributedLock guards the autosave slot so that only one gateway writes it
// at a time, even when several processes share the same store.
type DistributedLock interface {
	// Acquire attempts to take a named lock for ttl.
	// Returns false without error when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock back. Safe to call when the lock has already expired.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock out to ttl from now.
	// Backends without expiry (PostgreSQL advisory locks) treat it as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
