package limiter

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-node fallback used when no redis address is
// configured. Same admitted-attempt semantics as RedisLimiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time

	// Now is swappable for deterministic tests.
	Now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		Now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	threshold := now.Add(-window)

	kept := l.attempts[userID][:0]
	for _, at := range l.attempts[userID] {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= limit {
		l.attempts[userID] = kept
		return false, nil
	}

	l.attempts[userID] = append(kept, now)
	return true, nil
}
