package limiter

import (
	"context"
	"time"
)

// RateLimiter bounds vote attempts per user inside a sliding window.
// The quota is consumed by every admitted attempt, not only by accepted
// votes; rejected attempts do not extend the window. A limit <= 0 disables
// the check.
type RateLimiter interface {
	// Allow reports whether the user is under quota and, when so, records
	// the attempt.
	Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error)
}
