package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ChatWallet/internal/config"
	"ChatWallet/internal/conversation"
	"ChatWallet/internal/events"
	"ChatWallet/internal/history"
	"ChatWallet/internal/storage/mysql"
	redisstore "ChatWallet/internal/storage/redis"
)

// OpenHistory opens the transaction log selected by cfg.
func OpenHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	h := cfg.Storage.History
	switch strings.ToLower(h.Driver) {
	case "", "memory":
		return history.NewMemoryStore(), nil
	case "file":
		return history.NewFileStore(cfg.Runtime.DataDir)
	case "mysql":
		dsn := config.Secret(h.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("history: environment variable %s is not set", h.DSNEnv)
		}
		return mysql.NewHistoryStore(ctx, mysql.Config{
			DSN:             dsn,
			MaxOpenConns:    h.MaxOpenConns,
			MaxIdleConns:    h.MaxIdleConns,
			ConnMaxLifetime: time.Duration(h.ConnMaxLifetime) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown history driver %q", h.Driver)
	}
}

// OpenPending opens the clarification store selected by cfg.
func OpenPending(ctx context.Context, cfg *config.Config) (conversation.PendingStore, error) {
	p := cfg.Storage.Pending
	ttl := time.Duration(p.TTLSeconds) * time.Second
	switch strings.ToLower(p.Driver) {
	case "", "memory":
		return conversation.NewMemoryPendingStore(ttl), nil
	case "redis":
		return redisstore.NewPendingStore(ctx, redisstore.Config{
			Address:  cfg.Storage.Redis.Address,
			Password: config.Secret(cfg.Storage.Redis.PasswordEnv),
			DB:       cfg.Storage.Redis.DB,
			Prefix:   p.Prefix,
			TTL:      ttl,
		})
	default:
		return nil, fmt.Errorf("unknown pending driver %q", p.Driver)
	}
}

// OpenPublisher opens the event publisher selected by cfg.
func OpenPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	if strings.EqualFold(cfg.Events.Driver, "none") || cfg.Events.Driver == "" {
		return events.Nop{}, nil
	}
	return OpenBus(ctx, cfg)
}

// OpenBus opens the event bus selected by cfg for publishing and consuming.
func OpenBus(ctx context.Context, cfg *config.Config) (events.Bus, error) {
	e := cfg.Events
	switch strings.ToLower(e.Driver) {
	case "memory":
		return events.NewMemoryBus(256), nil
	case "redis":
		return events.NewRedisBus(ctx, events.RedisConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: config.Secret(cfg.Storage.Redis.PasswordEnv),
			DB:       cfg.Storage.Redis.DB,
			Key:      e.RedisKey,
			MaxLen:   e.RedisMaxLen,
		})
	case "rabbitmq":
		url := config.Secret(e.RabbitURLEnv)
		if url == "" {
			return nil, fmt.Errorf("events: environment variable %s is not set", e.RabbitURLEnv)
		}
		return events.NewRabbitMQBus(events.RabbitMQConfig{
			URL:      url,
			Exchange: e.Exchange,
			Queue:    e.Queue,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("events driver %q cannot be consumed", e.Driver)
	}
}
