package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Memory is a process-lifetime Store.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]listing.Listing
	byURL  map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		byID:   make(map[int64]listing.Listing),
		byURL:  make(map[string]int64),
	}
}

func (m *Memory) FindByURL(_ context.Context, url string) (*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	l := m.byID[id]
	return &l, nil
}

func (m *Memory) Get(_ context.Context, id int64) (*listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *Memory) Create(_ context.Context, l listing.Listing) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byURL[l.URL]; exists {
		return nil, ErrDuplicateURL
	}
	l.ID = m.nextID
	m.nextID++
	m.byID[l.ID] = l
	m.byURL[l.URL] = l.ID
	return &l, nil
}

func (m *Memory) Update(_ context.Context, id int64, l listing.Listing) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if other, exists := m.byURL[l.URL]; exists && other != id {
		return nil, ErrDuplicateURL
	}

	l.ID = id
	delete(m.byURL, old.URL)
	m.byURL[l.URL] = id
	m.byID[id] = l
	return &l, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]listing.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]listing.Listing, 0, len(m.byID))
	for _, l := range m.byID {
		if f.URL != "" && l.URL != f.URL {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b listing.Listing) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
