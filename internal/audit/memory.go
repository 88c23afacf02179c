package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in process memory. It backs the host when no
// audit database is configured, and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// NewMemoryStore keeps at most max entries, dropping the oldest; max <= 0
// means unbounded.
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if s.max > 0 && len(s.entries) > s.max {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-s.max:]...)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) (*Page, error) {
	f = f.normalized()

	s.mu.RLock()
	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &Page{Total: int64(len(matched)), Limit: f.Limit, Offset: f.Offset, Entries: []Entry{}}
	if f.Offset < len(matched) {
		end := f.Offset + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Entries = matched[f.Offset:end]
	}
	return page, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func matches(e Entry, f Filter) bool {
	if f.TableID != 0 && e.TableID != f.TableID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
