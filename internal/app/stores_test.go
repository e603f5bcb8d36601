package app

import (
	"context"
	"testing"

	"ChatWallet/internal/config"
	"ChatWallet/internal/conversation"
	"ChatWallet/internal/events"
	"ChatWallet/internal/history"
)

func TestOpenDefaults(t *testing.T) {
	cfg := config.Default(t.TempDir())
	ctx := context.Background()

	store, err := OpenHistory(ctx, cfg)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if _, ok := store.(*history.MemoryStore); !ok {
		t.Fatalf("unexpected history store %T", store)
	}
	pending, err := OpenPending(ctx, cfg)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, ok := pending.(*conversation.MemoryPendingStore); !ok {
		t.Fatalf("unexpected pending store %T", pending)
	}
	pub, err := OpenPublisher(ctx, cfg)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if _, ok := pub.(events.Nop); !ok {
		t.Fatalf("unexpected publisher %T", pub)
	}
}

func TestOpenFileHistoryAndMemoryBus(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Storage.History.Driver = "file"
	cfg.Events.Driver = "memory"
	ctx := context.Background()

	store, err := OpenHistory(ctx, cfg)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer store.Close()
	if err := store.Create(ctx, &history.Record{ID: "op-1", Account: "0xa1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	bus, err := OpenBus(ctx, cfg)
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()
	if _, ok := bus.(*events.MemoryBus); !ok {
		t.Fatalf("unexpected bus %T", bus)
	}
}

func TestOpenRejectsMissingSecrets(t *testing.T) {
	cfg := config.Default(t.TempDir())
	ctx := context.Background()

	cfg.Storage.History.Driver = "mysql"
	cfg.Storage.History.DSNEnv = "CHATWALLET_TEST_UNSET_DSN"
	if _, err := OpenHistory(ctx, cfg); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	cfg.Events.Driver = "rabbitmq"
	cfg.Events.RabbitURLEnv = "CHATWALLET_TEST_UNSET_AMQP"
	if _, err := OpenBus(ctx, cfg); err == nil {
		t.Fatalf("expected missing url error")
	}
	if _, err := LoadChains(config.ChainsConfig{RPC: map[string]string{"nowhere": "http://x"}}); err == nil {
		t.Fatalf("expected unknown chain error")
	}
}
