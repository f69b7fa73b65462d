// Package ledger records which events a stage has already completed so an
// exact bus redelivery can be acknowledged without re-running the stage.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger tracks completed (stage, event id) pairs.
type Ledger interface {
	Done(ctx context.Context, stage, eventID string) (bool, error)
	MarkDone(ctx context.Context, stage, eventID string) error
}

// Nop never reports an event as done: at-least-once with overwrite.
type Nop struct{}

func (Nop) Done(context.Context, string, string) (bool, error) { return false, nil }
func (Nop) MarkDone(context.Context, string, string) error { return nil }

// Redis stores completion markers with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func (r *Redis) Done(ctx context.Context, stage, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, key(stage, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) MarkDone(ctx context.Context, stage, eventID string) error {
	if err := r.client.Set(ctx, key(stage, eventID), time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Err(); err != nil {
		return fmt.Errorf("ledger mark: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func key(stage, eventID string) string {
	return fmt.Sprintf("speechflow:done:%s:%s", stage, eventID)
}
