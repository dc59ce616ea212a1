package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// TokenBucketLimiter is the in-process CreationLimiter: one token
// bucket per user, refilled evenly across the window.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewTokenBucketLimiter allows perWindow creations per window per user.
func NewTokenBucketLimiter(perWindow int, window time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(perWindow)),
		burst:    perWindow,
	}
}

// Allow reports whether the user may create an entry now.
func (l *TokenBucketLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
