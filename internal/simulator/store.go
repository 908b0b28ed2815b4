package simulator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigil/internal/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound (wrapped) when no record exists for the user
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
//
// Store persists session records. Implementations return clones; callers
// may mutate results freely.
type Store interface {
	Put(ctx context.Context, rec *SessionRecord) error
	Get(ctx context.Context, userID string) (*SessionRecord, error)
	List(ctx context.Context) ([]*SessionRecord, error)
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
	Touch(ctx context.Context, userID string, at time.Time) error

	// MarkIdleOffline flips online records whose last activity predates the
	// cutoff to offline, preserving their activity timestamp, and returns
	// the affected user ids.
	MarkIdleOffline(ctx context.Context, cutoff time.Time) ([]string, error)

	// DeleteOffline removes offline records whose last activity predates
	// the cutoff and returns how many were removed.
	DeleteOffline(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps session records in memory. It is the default backend;
// the Redis variant exists for multi-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*SessionRecord
}

// NewMemory constructs an empty in-memory session store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]*SessionRecord)}
}

func (s *MemoryStore) Put(_ context.Context, rec *SessionRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("session record requires a user id: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[userID]; ok {
		return rec.Clone(), nil
	}
	return nil, fmt.Errorf("session record not found: %w", sentinel.ErrNotFound)
}

// List returns all records ordered by user id so pagination is stable.
func (s *MemoryStore) List(_ context.Context) ([]*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

func (s *MemoryStore) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("session record not found: %w", sentinel.ErrNotFound)
	}
	rec.SetOnline(online, at)
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("session record not found: %w", sentinel.ErrNotFound)
	}
	rec.Touch(at)
	return nil
}

func (s *MemoryStore) MarkIdleOffline(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked []string
	for _, rec := range s.records {
		if rec.IsOnline && rec.LastActivity.Before(cutoff) {
			rec.IsOnline = false
			marked = append(marked, rec.UserID)
		}
	}
	sort.Strings(marked)
	return marked, nil
}

func (s *MemoryStore) DeleteOffline(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, rec := range s.records {
		if !rec.IsOnline && rec.LastActivity.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}
