package cache

import (
	"context"
	"time"
)

// Store represents the shared claim cache backing the dedup window guard.
type Store interface {
	// TryClaim atomically claims the key for the supplied window. The first
	// caller within the window receives true; later callers receive false
	// until the claim expires. The check-and-mark step is a single atomic
	// operation against the backing store.
	TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops claims, primarily for administrative resets.
	Release(ctx context.Context, keys ...string) error
}

// defaultClaimTTL backstops callers that pass a non-positive window so a
// claim never lands without an expiry.
const defaultClaimTTL = time.Minute

func claimTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultClaimTTL
	}
	return ttl
}
