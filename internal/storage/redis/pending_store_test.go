package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "ChatWallet/internal/errors"
)

func TestPendingStoreDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	store := newPendingStore(client, Config{})
	if store.ttl != 30*time.Minute {
		t.Fatalf("unexpected ttl %s", store.ttl)
	}
	if got := store.key("c1"); got != "chatwallet:pending:c1" {
		t.Fatalf("unexpected key %q", got)
	}

	custom := newPendingStore(client, Config{Prefix: "test:", TTL: time.Minute})
	if custom.key("c1") != "test:c1" || custom.ttl != time.Minute {
		t.Fatalf("options ignored: %+v", custom)
	}
}

func TestNewPendingStoreRequiresAddress(t *testing.T) {
	_, err := NewPendingStore(context.Background(), Config{})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
