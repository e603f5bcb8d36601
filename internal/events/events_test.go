package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx := context.Background()
	for _, phase := range []string{"confirming", "pending", "success"} {
		if err := bus.Publish(ctx, Event{Type: TypeOperationState, OperationID: "op1", Phase: phase}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	bus.Close()

	var phases []string
	err := bus.Consume(ctx, func(_ context.Context, e Event) error {
		phases = append(phases, e.Phase)
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(phases) != 3 || phases[0] != "confirming" || phases[2] != "success" {
		t.Fatalf("unexpected delivery %v", phases)
	}
	if err := bus.Publish(ctx, Event{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestMemoryBusPublishHonoursContext(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()
	if err := bus.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := bus.Publish(ctx, Event{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline on full bus, got %v", err)
	}
}

func TestEventCodec(t *testing.T) {
	payload, err := encode(Event{Type: TypeSessionChanged, Account: "0xaa", Detail: "chain"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	event, err := decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != TypeSessionChanged || event.Account != "0xaa" || event.Time.IsZero() {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestRedisBusDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	bus := newRedisBus(client, RedisConfig{})
	if bus.key != "chatwallet:events" || bus.maxLen != 10000 || bus.wait != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", bus)
	}
}
