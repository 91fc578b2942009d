// Package offline keeps durable local backups of not-yet-confirmed edits, one
// value per key, and tells every other open instance when a key changes.
//
// Store implementations hold raw text. Value binds a typed, JSON-encoded view
// to a single key and keeps an in-memory mirror that follows writes made by
// other instances (another window, another process on the same Redis).
package offline

import (
	"context"
	"sync"
)

// Change describes a write or removal performed by the instance named in
// Origin.
type Change struct {
	Key     string
	Value   []byte
	Removed bool
	Origin  string
}

type Store interface {
	// Get returns the stored text for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Subscribe registers fn for changes to key made by other instances. The
	// writing instance never notifies itself.
	Subscribe(key string, fn func(Change)) (cancel func())
	Close() error
}

// subscribers is the per-instance fan-out shared by every Store
// implementation.
type subscribers struct {
	mu    sync.Mutex
	next  int
	byKey map[string]map[int]func(Change)
}

func newSubscribers() *subscribers {
	return &subscribers{byKey: make(map[string]map[int]func(Change))}
}

func (s *subscribers) add(key string, fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	if s.byKey[key] == nil {
		s.byKey[key] = make(map[int]func(Change))
	}
	s.byKey[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.byKey[key], id)
			if len(s.byKey[key]) == 0 {
				delete(s.byKey, key)
			}
		})
	}
}

func (s *subscribers) notify(change Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.byKey[change.Key]))
	for _, fn := range s.byKey[change.Key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
