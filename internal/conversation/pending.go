package conversation

import (
	"context"
	"sync"
	"time"

	"ChatWallet/internal/intent"
)

// PendingStore keeps intents waiting for a clarification answer.
type PendingStore interface {
	Load(ctx context.Context, conversationID string) (intent.Intent, bool, error)
	Save(ctx context.Context, conversationID string, in intent.Intent) error
	Delete(ctx context.Context, conversationID string) error
}

type pendingEntry struct {
	in      intent.Intent
	expires time.Time
}

// MemoryPendingStore is a process-local PendingStore with expiry.
type MemoryPendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]pendingEntry
	now     func() time.Time
}

// NewMemoryPendingStore creates a store whose entries expire after ttl.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryPendingStore{ttl: ttl, entries: make(map[string]pendingEntry), now: time.Now}
}

func (s *MemoryPendingStore) Load(_ context.Context, id string) (intent.Intent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return intent.Intent{}, false, nil
	}
	if s.now().After(entry.expires) {
		delete(s.entries, id)
		return intent.Intent{}, false, nil
	}
	return entry.in, true, nil
}

func (s *MemoryPendingStore) Save(_ context.Context, id string, in intent.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = pendingEntry{in: in, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
