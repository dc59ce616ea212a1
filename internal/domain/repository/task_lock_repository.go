package repository

import (
	"context"
	"time"
)

// TaskLockRepository provides the single-flight claim per task key.
// The lock is advisory, defense in depth against two workers or two
// poll cycles double-executing the same task; correctness rests on the
// entry repository's compare-and-swap transitions, not on this lock.
//
// Locks carry a TTL so a claim left behind by a crashed process expires
// and the task becomes claimable again.
type TaskLockRepository interface {
	// Acquire attempts to claim key for ttl. Returns false when the key
	// is already held by a live claim.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim. Releasing an unheld key is a no-op.
	Release(ctx context.Context, key string) error

	// ReleaseExpired drops all expired claims and returns how many were
	// removed.
	ReleaseExpired(ctx context.Context) (int, error)
}
