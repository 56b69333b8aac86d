package tokenstore

import (
	"context"
	"sync"

	"github.com/songbook/songbook-session/internal/common"
)

// SharedMemory is storage visible to every tab created from it, keyed like
// browser local storage.
type SharedMemory struct {
	mu     sync.Mutex
	values map[string]string
	tabs   map[*MemoryStore]struct{}
}

func NewSharedMemory() *SharedMemory {
	return &SharedMemory{
		values: make(map[string]string),
		tabs:   make(map[*MemoryStore]struct{}),
	}
}

// Tab returns a new Store bound to key. Notices are delivered synchronously
// from the writer's goroutine.
func (s *SharedMemory) Tab(key string) *MemoryStore {
	m := &MemoryStore{shared: s, key: key, origin: newOrigin()}
	s.mu.Lock()
	s.tabs[m] = struct{}{}
	s.mu.Unlock()
	return m
}

type MemoryStore struct {
	shared *SharedMemory
	key    string
	origin string
	subs   subscribers
}

func (m *MemoryStore) Origin() string { return m.origin }

func (m *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	v, ok := m.shared.values[m.key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrEmptyToken
	}
	m.write(token, true)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.write("", false)
	return nil
}

func (m *MemoryStore) write(token string, present bool) {
	s := m.shared
	s.mu.Lock()
	prev, had := s.values[m.key]
	if present {
		s.values[m.key] = token
	} else {
		delete(s.values, m.key)
	}
	changed := had != present || prev != token
	var peers []*MemoryStore
	if changed {
		for tab := range s.tabs {
			if tab != m && tab.key == m.key {
				peers = append(peers, tab)
			}
		}
	}
	s.mu.Unlock()

	c := Change{Present: present, Origin: m.origin}
	for _, p := range peers {
		p.subs.notify(c)
	}
}

func (m *MemoryStore) Subscribe(fn func(Change)) func() {
	return m.subs.add(fn)
}

// Close detaches the tab; it stops receiving notices.
func (m *MemoryStore) Close() error {
	m.shared.mu.Lock()
	delete(m.shared.tabs, m)
	m.shared.mu.Unlock()
	return nil
}
