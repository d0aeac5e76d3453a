package ports

import (
	"context"
	"time"
)

// IntentLockStore enforces the single-flight invariant across processes:
// at most one active poll scheduler per correlation id. Acquire is a
// set-if-absent with TTL; the TTL covers the poll budget plus grace so a
// crashed process cannot strand a correlation id forever.
type IntentLockStore interface {
	Acquire(ctx context.Context, correlationID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, correlationID string) error
}
