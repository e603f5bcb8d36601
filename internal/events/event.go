// Package events publishes operation lifecycle events to a message bus.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names an event.
type Type string

const (
	// TypeOperationState is published for every execution state.
	TypeOperationState Type = "operation.state"
	// TypeOperationCancelled is published when a preview is cancelled.
	TypeOperationCancelled Type = "operation.cancelled"
	// TypeSessionChanged is published when the wallet session switches.
	TypeSessionChanged Type = "session.changed"
)

// Event is the wire form of a lifecycle notification.
type Event struct {
	Type           Type      `json:"type"`
	OperationID    string    `json:"operation_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Account        string    `json:"account,omitempty"`
	Chain          string    `json:"chain,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Phase          string    `json:"phase,omitempty"`
	Step           string    `json:"step,omitempty"`
	TxHash         string    `json:"tx_hash,omitempty"`
	Code           string    `json:"code,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	Time           time.Time `json:"time"`
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, event Event) error

// Publisher delivers events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Consumer reads events from a bus until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Bus is both ends of a transport.
type Bus interface {
	Publisher
	Consumer
}

func encode(event Event) ([]byte, error) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	return json.Marshal(event)
}

func decode(data []byte) (Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return event, err
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
