package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	xerrors "ChatWallet/internal/errors"
)

// maxRecords bounds what MemoryStore keeps in memory.
const maxRecords = 1024

// MemoryStore keeps records in memory. When created with NewFileStore every
// change is also appended to a JSON lines journal and replayed on start.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	journal string
	now     func() time.Time
}

// NewMemoryStore creates a volatile MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record), now: time.Now}
}

// NewFileStore creates a MemoryStore journaled to dataDir/transactions.log.
func NewFileStore(dataDir string) (*MemoryStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "create data directory")
	}
	m := NewMemoryStore()
	m.journal = filepath.Join(dataDir, "transactions.log")
	if err := m.replay(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) Create(_ context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return ErrRecordConflict
	}
	now := m.now().Unix()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	clone := *rec
	if err := m.append(&clone); err != nil {
		return err
	}
	m.records[rec.ID] = &clone
	m.evict()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, update Update) error {
	if update.Status != "" && !IsValidStatus(update.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "unknown record status "+string(update.Status))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	next := *rec
	update.Apply(&next)
	next.UpdatedAt = m.now().Unix()
	if err := m.append(&next); err != nil {
		return err
	}
	m.records[id] = &next
	return nil
}

func (m *MemoryStore) List(_ context.Context, opts ...ListOption) ([]*Record, error) {
	options := BuildListOptions(opts)
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		if !options.Matches(rec) {
			continue
		}
		clone := *rec
		results = append(results, &clone)
	}
	sortRecords(results, options.Order)

	if options.Offset >= len(results) {
		return []*Record{}, nil
	}
	results = results[options.Offset:]
	if len(results) > options.Limit {
		results = results[:options.Limit]
	}
	return results, nil
}

func (m *MemoryStore) Stats(_ context.Context, opts ...ListOption) (Stats, error) {
	options := BuildListOptions(opts)
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{}
	for _, rec := range m.records {
		if options.Matches(rec) {
			stats.add(rec)
		}
	}
	return stats, nil
}

// Close is a no-op; the journal is opened per write.
func (m *MemoryStore) Close() error {
	return nil
}

func sortRecords(records []*Record, order SortOrder) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CreatedAt == b.CreatedAt {
			if order == SortByCreatedAsc {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if order == SortByCreatedAsc {
			return a.CreatedAt < b.CreatedAt
		}
		return a.CreatedAt > b.CreatedAt
	})
}

// evict drops the oldest records beyond maxRecords. Caller holds mu.
func (m *MemoryStore) evict() {
	if len(m.records) <= maxRecords {
		return
	}
	all := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, rec)
	}
	sortRecords(all, SortByCreatedAsc)
	for _, rec := range all[:len(all)-maxRecords] {
		delete(m.records, rec.ID)
	}
}

// append journals a snapshot of rec. Caller holds mu.
func (m *MemoryStore) append(rec *Record) error {
	if m.journal == "" {
		return nil
	}
	file, err := os.OpenFile(m.journal, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "open transaction journal")
	}
	defer file.Close()

	encoded, err := json.Marshal(rec)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "encode transaction record")
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "write transaction journal")
	}
	return nil
}

// replay restores the latest snapshot of every record from the journal.
func (m *MemoryStore) replay() error {
	file, err := os.OpenFile(m.journal, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "read transaction journal")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.ID == "" {
			continue
		}
		m.records[rec.ID] = &rec
	}
	if err := scanner.Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("parse %s", m.journal))
	}
	m.evict()
	return nil
}

var _ Store = (*MemoryStore)(nil)
