package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PortalLimiter throttles portal booking attempts per user with a fixed
// redis window. Staff channels are never limited. A redis outage fails
// open; the capacity guards still hold inside the transaction.
type PortalLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewPortalLimiter creates a limiter. A nil client disables limiting.
func NewPortalLimiter(client *redis.Client, limit int, window time.Duration) *PortalLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Hour
	}
	return &PortalLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt and reports whether the caller is still under
// the limit.
func (l *PortalLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	key := fmt.Sprintf("portal:bookings:%s", userID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(l.limit), nil
}
