package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/intent"
)

// Config holds the Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// PendingStore keeps partially specified intents awaiting clarification.
type PendingStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPendingStore connects to Redis.
func NewPendingStore(ctx context.Context, cfg Config) (*PendingStore, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "connect redis")
	}
	return newPendingStore(client, cfg), nil
}

func newPendingStore(client *redis.Client, cfg Config) *PendingStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "chatwallet:pending:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PendingStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *PendingStore) key(conversationID string) string {
	return s.prefix + conversationID
}

// Load returns the pending intent of a conversation.
func (s *PendingStore) Load(ctx context.Context, conversationID string) (intent.Intent, bool, error) {
	raw, err := s.client.Get(ctx, s.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return intent.Intent{}, false, nil
	}
	if err != nil {
		return intent.Intent{}, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "load pending intent")
	}
	var in intent.Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		// A record written by an incompatible version is dropped.
		_ = s.client.Del(ctx, s.key(conversationID)).Err()
		return intent.Intent{}, false, nil
	}
	return in, true, nil
}

// Save stores in with the configured TTL, refreshing any previous entry.
func (s *PendingStore) Save(ctx context.Context, conversationID string, in intent.Intent) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode pending intent")
	}
	if err := s.client.Set(ctx, s.key(conversationID), raw, s.ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "save pending intent")
	}
	return nil
}

func (s *PendingStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "delete pending intent")
	}
	return nil
}

func (s *PendingStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
