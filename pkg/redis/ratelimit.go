package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for atomic counter increment with expiry on first write.
// Prevents the lost-expiry race of a separate INCR followed by EXPIRE.
const recordLuaScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// FixedWindowLimiter is a keyed fixed-window submission counter backed by
// Redis. The window is non-sliding: every key is bucketed by window index,
// which admits a burst of up to 2x the cap across a window boundary. That
// trade-off is accepted for the abuse-deterrence use case.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration

	recordScript *redis.Script

	now func() time.Time
}

// NewFixedWindowLimiter creates a limiter allowing max submissions per key
// per window
func NewFixedWindowLimiter(client *redis.Client, prefix string, max int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client:       client,
		prefix:       prefix,
		max:          max,
		window:       window,
		recordScript: redis.NewScript(recordLuaScript),
		now:          time.Now,
	}
}

func (l *FixedWindowLimiter) key(origin string) string {
	bucket := l.now().Unix() / int64(l.window.Seconds())
	return fmt.Sprintf("%s:%s:%d", l.prefix, origin, bucket)
}

// Allow reports whether origin is still under the cap for the current
// window. It does not consume a slot; call Record after the guarded
// operation durably succeeds.
func (l *FixedWindowLimiter) Allow(ctx context.Context, origin string) (bool, error) {
	count, err := l.client.Get(ctx, l.key(origin)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return count < l.max, nil
}

// Record atomically consumes one slot for origin in the current window.
// The key expires two windows out so stale buckets clean themselves up.
func (l *FixedWindowLimiter) Record(ctx context.Context, origin string) error {
	ttl := int64((2 * l.window).Seconds())
	if err := l.recordScript.Run(ctx, l.client, []string{l.key(origin)}, ttl).Err(); err != nil {
		return fmt.Errorf("rate limit record failed: %w", err)
	}
	return nil
}
