package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// AvailabilityCache keeps computed slot lists in redis so the portal's
// polling UIs do not hammer the database. Booking mutations invalidate the
// date's entries, and entries expire on a short TTL regardless.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewAvailabilityCache creates a cache. A nil client disables caching.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *AvailabilityCache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &AvailabilityCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(date time.Time, channel Channel) string {
	return fmt.Sprintf("availability:%s:%s", date.Format("2006-01-02"), channel)
}

// Get returns cached slots, or nil on miss or error. Cache failures are
// logged and treated as misses; availability must keep working without redis.
func (c *AvailabilityCache) Get(ctx context.Context, date time.Time, channel Channel) []Slot {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKey(date, channel)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("availability cache read failed", "error", err)
		return nil
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.logger.Warn("availability cache decode failed", "error", err)
		return nil
	}
	return slots
}

// Put stores slots for the date and channel.
func (c *AvailabilityCache) Put(ctx context.Context, date time.Time, channel Channel, slots []Slot) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(date, channel), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "error", err)
	}
}

// Invalidate drops both channels' entries for a date after a mutation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, date time.Time) {
	if c.client == nil {
		return
	}
	keys := []string{
		cacheKey(date, ChannelStaff),
		cacheKey(date, ChannelPortal),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("availability cache invalidate failed", "error", err)
	}
}
