package usage

import (
	"context"
	"os"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

func newTestCounter(t *testing.T) *Counter {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed usage tests")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush db: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewCounter(client)
}

func TestCounterIncrementAndRead(t *testing.T) {
	counter := newTestCounter(t)
	ctx := context.Background()

	if count, err := counter.Today(ctx, 1); err != nil || count != 0 {
		t.Fatalf("fresh counter = %d, %v", count, err)
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := counter.Increment(ctx, 1, now); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := counter.Increment(ctx, 2, now); err != nil {
		t.Fatalf("Increment other user: %v", err)
	}

	if count, err := counter.Today(ctx, 1); err != nil || count != 3 {
		t.Fatalf("user 1 count = %d, %v", count, err)
	}
	if count, err := counter.Today(ctx, 2); err != nil || count != 1 {
		t.Fatalf("user 2 count = %d, %v", count, err)
	}
}
