package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes a Redis list used as an event stream.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	Key       string
	MaxLen    int64
	BlockWait time.Duration
}

// RedisBus pushes events onto a capped Redis list and pops them with BRPOP.
type RedisBus struct {
	client *redis.Client
	key    string
	maxLen int64
	wait   time.Duration
}

// NewRedisBus connects to Redis.
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newRedisBus(client, cfg), nil
}

func newRedisBus(client *redis.Client, cfg RedisConfig) *RedisBus {
	key := cfg.Key
	if key == "" {
		key = "chatwallet:events"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisBus{client: client, key: key, maxLen: maxLen, wait: wait}
}

// Publish prepends the event and trims the list to MaxLen entries.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, b.key, payload)
	pipe.LTrim(ctx, b.key, 0, b.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish event: %w", err)
	}
	return nil
}

// Consume pops events oldest first.
func (b *RedisBus) Consume(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := b.client.BRPop(ctx, b.wait, b.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return err
			}
			return fmt.Errorf("redis pop event: %w", err)
		}
		if len(values) != 2 {
			continue
		}
		event, err := decode([]byte(values[1]))
		if err != nil {
			continue
		}
		_ = handler(ctx, event)
	}
}

func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
