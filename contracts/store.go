package contracts

import (
	"context"
	"time"
)

// Store is the key-value service the lock is coordinated through.
// Implementations must be safe for concurrent use by multiple locks.
type Store interface {
	// ConditionalSet atomically creates key with value only if it is absent.
	// A non-positive ttl means the entry never expires. It reports whether
	// this call created the entry.
	ConditionalSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key unconditionally and reports whether an entry was removed.
	Delete(ctx context.Context, key string) (bool, error)
}

// OwnedStore is a Store that can act on an entry only when it still holds
// the value written by ConditionalSet.
type OwnedStore interface {
	Store

	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
