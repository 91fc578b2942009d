package offline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("offline store closed")

// Hub connects store instances living in one process. MemoryStores created
// from the same Hub share their data the way browser tabs share local
// storage.
type Hub struct {
	mu      sync.Mutex
	data    map[string][]byte
	members map[string]*subscribers
}

func NewHub() *Hub {
	return &Hub{
		data:    make(map[string][]byte),
		members: make(map[string]*subscribers),
	}
}

// Clear drops all shared memory data. Subscribers are not notified.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = make(map[string][]byte)
}

func (h *Hub) join(origin string, subs *subscribers) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[origin] = subs
}

func (h *Hub) leave(origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, origin)
}

func (h *Hub) broadcast(change Change) {
	h.mu.Lock()
	targets := make([]*subscribers, 0, len(h.members))
	for origin, subs := range h.members {
		if origin != change.Origin {
			targets = append(targets, subs)
		}
	}
	h.mu.Unlock()

	for _, subs := range targets {
		subs.notify(change)
	}
}

// MemoryStore is one instance attached to a Hub.
type MemoryStore struct {
	hub    *Hub
	origin string
	subs   *subscribers

	mu     sync.Mutex
	closed bool
}

// NewStore attaches a new instance to the hub.
func (h *Hub) NewStore() *MemoryStore {
	s := &MemoryStore{
		hub:    h,
		origin: uuid.NewString(),
		subs:   newSubscribers(),
	}
	h.join(s.origin, s.subs)
	return s
}

// NewMemoryStore returns a store on its own private hub.
func NewMemoryStore() *MemoryStore {
	return NewHub().NewStore()
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	value, ok := s.hub.data[key]
	return cloneBytes(value), ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.hub.mu.Lock()
	s.hub.data[key] = cloneBytes(value)
	s.hub.mu.Unlock()

	s.hub.broadcast(Change{Key: key, Value: cloneBytes(value), Origin: s.origin})
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.hub.mu.Lock()
	_, existed := s.hub.data[key]
	delete(s.hub.data, key)
	s.hub.mu.Unlock()

	if existed {
		s.hub.broadcast(Change{Key: key, Removed: true, Origin: s.origin})
	}
	return nil
}

func (s *MemoryStore) Subscribe(key string, fn func(Change)) func() {
	return s.subs.add(key, fn)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.leave(s.origin)
	return nil
}
