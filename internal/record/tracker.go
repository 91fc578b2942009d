package record

import (
	"context"
	"fmt"
	"sync"
)

// UpdateFunc submits value against version and returns the version the
// server assigned to the write.
type UpdateFunc[T any] func(ctx context.Context, version int, value T) (int, error)

// FetchFunc loads the current value and version from the server.
type FetchFunc[T any] func(ctx context.Context) (T, int, error)

// Tracker remembers the last version a client observed for one record and
// echoes it on every update.
type Tracker[T any] struct {
	mu      sync.Mutex
	version int
	update  UpdateFunc[T]
	fetch   FetchFunc[T]
}

func NewTracker[T any](version int, update UpdateFunc[T], fetch FetchFunc[T]) *Tracker[T] {
	return &Tracker[T]{version: version, update: update, fetch: fetch}
}

// Version returns the last version acknowledged by the server.
func (t *Tracker[T]) Version() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Save submits value with the tracked version. A conflict leaves the tracked
// version untouched; only Refresh adopts a newer one.
func (t *Tracker[T]) Save(ctx context.Context, value T) error {
	t.mu.Lock()
	version := t.version
	t.mu.Unlock()

	next, err := t.update(ctx, version, value)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if next > t.version {
		t.version = next
	}
	t.mu.Unlock()
	return nil
}

// Refresh re-fetches the record and adopts the server's version so the next
// Save is submitted against what is actually stored.
func (t *Tracker[T]) Refresh(ctx context.Context) (T, error) {
	value, version, err := t.fetch(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("refresh record: %w", err)
	}
	t.mu.Lock()
	t.version = version
	t.mu.Unlock()
	return value, nil
}

// Adopt records version when the same client bumped the record through
// another write, such as a status change. Older versions are ignored.
func (t *Tracker[T]) Adopt(version int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version > t.version {
		t.version = version
	}
}
