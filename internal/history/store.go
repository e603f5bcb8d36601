package history

import "context"

// Store persists transaction records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	UpdateStatus(ctx context.Context, id string, update Update) error
	List(ctx context.Context, opts ...ListOption) ([]*Record, error)
	Stats(ctx context.Context, opts ...ListOption) (Stats, error)
	Close() error
}

// Stats aggregates record statuses.
type Stats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Success         int   `json:"success"`
	Failed          int   `json:"failed"`
	TimedOut        int   `json:"timed_out"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

func (s *Stats) add(rec *Record) {
	s.Total++
	switch rec.Status {
	case StatusPending:
		s.Pending++
	case StatusSuccess:
		s.Success++
	case StatusFailed:
		s.Failed++
	case StatusTimedOut:
		s.TimedOut++
	}
	if rec.UpdatedAt > s.NewestUpdatedAt {
		s.NewestUpdatedAt = rec.UpdatedAt
	}
	if s.OldestUpdatedAt == 0 || (rec.UpdatedAt != 0 && rec.UpdatedAt < s.OldestUpdatedAt) {
		s.OldestUpdatedAt = rec.UpdatedAt
	}
}
