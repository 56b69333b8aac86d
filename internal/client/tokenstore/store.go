package tokenstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Change is a notice that another instance changed the token.
type Change struct {
	// Present is true when the token now exists, false when it was cleared.
	Present bool
	// Origin is the ID of the instance that wrote the change.
	Origin string
}

// Store is the persistence contract for the bearer token.
//
// Get reports ok=false when no token is stored. Set overwrites any previous
// value and rejects empty tokens with common.ErrEmptyToken. Subscribe
// registers fn for changes written by other instances; the returned function
// removes it and is safe to call more than once.
type Store interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Subscribe(fn func(Change)) (unsubscribe func())
	Origin() string
	Close() error
}

func newOrigin() string {
	return uuid.NewString()
}

// subscribers is the registry embedded by every backend.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// notify calls every subscriber outside the lock, so handlers may call back
// into the store.
func (s *subscribers) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
