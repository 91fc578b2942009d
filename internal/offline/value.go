package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Value is a typed view of one key. Reads that fail to parse are treated as
// "no backup" and logged, never returned as errors.
type Value[T any] struct {
	store  Store
	key    string
	logger *slog.Logger

	mu     sync.RWMutex
	mirror T
	has    bool
	cancel func()
}

// Bind loads the current value for key into the mirror and starts following
// external changes. logger may be nil.
func Bind[T any](ctx context.Context, store Store, key string, logger *slog.Logger) *Value[T] {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Value[T]{store: store, key: key, logger: logger}
	v.cancel = store.Subscribe(key, v.onChange)
	v.Load(ctx)
	return v
}

func (v *Value[T]) Key() string {
	return v.key
}

func (v *Value[T]) onChange(change Change) {
	if change.Removed {
		v.setMirror(*new(T), false)
		return
	}
	decoded, ok := v.decode(change.Value)
	v.setMirror(decoded, ok)
}

func (v *Value[T]) decode(raw []byte) (T, bool) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		v.logger.Warn("offline: discarding unreadable backup", "key", v.key, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}

func (v *Value[T]) setMirror(value T, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mirror = value
	v.has = ok
}

// Load reads the stored value, refreshing the mirror.
func (v *Value[T]) Load(ctx context.Context) (T, bool) {
	var zero T
	raw, ok, err := v.store.Get(ctx, v.key)
	if err != nil {
		v.logger.Warn("offline: backup read failed", "key", v.key, "error", err)
		return zero, false
	}
	if !ok {
		v.setMirror(zero, false)
		return zero, false
	}
	decoded, ok := v.decode(raw)
	v.setMirror(decoded, ok)
	return decoded, ok
}

// Get returns the stored value or def when there is none (or it is corrupt).
func (v *Value[T]) Get(ctx context.Context, def T) T {
	value, ok := v.Load(ctx)
	if !ok {
		return def
	}
	return value
}

func (v *Value[T]) Set(ctx context.Context, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode backup %s: %w", v.key, err)
	}
	if err := v.store.Set(ctx, v.key, raw); err != nil {
		return err
	}
	v.setMirror(value, true)
	return nil
}

func (v *Value[T]) Remove(ctx context.Context) error {
	if err := v.store.Remove(ctx, v.key); err != nil {
		return err
	}
	v.setMirror(*new(T), false)
	return nil
}

// RemoveIf removes the backup only while it still holds encoded. It reports
// whether the key is now absent. Stores have no compare-and-delete, so a
// concurrent writer in another instance can still race this check.
func (v *Value[T]) RemoveIf(ctx context.Context, encoded []byte) (bool, error) {
	raw, ok, err := v.store.Get(ctx, v.key)
	if err != nil {
		return false, err
	}
	if !ok {
		v.setMirror(*new(T), false)
		return true, nil
	}
	if !bytes.Equal(raw, encoded) {
		return false, nil
	}
	if err := v.Remove(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Mirror returns the last known value without touching the store.
func (v *Value[T]) Mirror() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mirror, v.has
}

// Close stops following external changes. The stored value is kept.
func (v *Value[T]) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}
