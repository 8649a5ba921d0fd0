// Package lock provides the short-TTL mutual-exclusion primitive used to
// guard concurrent duplicate flow starts.
package lock

import (
	"context"
	"time"
)

// Locker is a best-effort distributed lock. Acquire returns an owner token
// when the lock was taken, empty when the key is already held. Release
// requires that token back, so a holder whose lock expired and was
// re-acquired cannot drop the successor's lock. A holder that crashes
// self-heals via TTL expiry.
type Locker interface {
	// Acquire attempts to take the lock via an atomic set-if-absent.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release drops the lock if token still owns it. Releasing with a
	// stale token, or a lock that expired, is not an error.
	Release(ctx context.Context, key, token string) error
}
