package usage

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Counter keeps per-user daily request counts in redis. Counters are
// operational telemetry, not durable state: each key expires after two days.
type Counter struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewCounter(client *redisv9.Client) *Counter {
	return &Counter{
		client: client,
		ttl:    48 * time.Hour,
	}
}

func key(userID uint, day time.Time) string {
	return fmt.Sprintf("usage:%d:%s", userID, day.Format("2006-01-02"))
}

func (c *Counter) Increment(ctx context.Context, userID uint, at time.Time) error {
	k := key(userID, at)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment usage counter failed: %w", err)
	}
	return nil
}

// Today returns the user's request count for the current day; zero when the
// key is absent.
func (c *Counter) Today(ctx context.Context, userID uint) (int64, error) {
	count, err := c.client.Get(ctx, key(userID, time.Now())).Int64()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter failed: %w", err)
	}
	return count, nil
}
