package redisstore

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/sandrolain/nfhttp/cache/storetest"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping test; no server running at localhost:6379")
	}
	_ = client.FlushAll(ctx)

	storetest.Store(t, NewWithClient(client))
}
