package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients keeps blocking queue reads, pub/sub and the chart cache on
// separate connection pools.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
	Cache  *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clients := &RedisClients{}
	for _, target := range []struct {
		name string
		dst  **redis.Client
	}{
		{"queue", &clients.Queue},
		{"pubsub", &clients.PubSub},
		{"cache", &clients.Cache},
	} {
		o := *opt
		client := redis.NewClient(&o)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			clients.Close()
			return nil, fmt.Errorf("failed to ping Redis (%s): %w", target.name, err)
		}
		*target.dst = client
	}

	return clients, nil
}

func (r *RedisClients) Ping(ctx context.Context) error {
	return r.Queue.Ping(ctx).Err()
}

func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Queue, r.PubSub, r.Cache} {
		if c != nil {
			c.Close()
		}
	}
}
