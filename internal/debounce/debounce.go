// Package debounce holds the coalescing state behind autosave: the latest
// pending value and a generation counter that tells a firing timer whether it
// is still the current one. It owns no timers itself; callers arm and stop
// them, which keeps the coalescing rules testable without a clock.
package debounce

import (
	"bytes"
	"encoding/json"
)

// Debouncer is not safe for concurrent use.
type Debouncer[T any] struct {
	pending    T
	hasPending bool
	gen        uint64
}

// Push replaces any pending value and returns the generation the caller's
// timer must present to Due. Earlier generations become stale.
func (d *Debouncer[T]) Push(value T) uint64 {
	d.pending = value
	d.hasPending = true
	d.gen++
	return d.gen
}

// Hold sets the pending value without expecting a timer; outstanding timers
// become stale.
func (d *Debouncer[T]) Hold(value T) {
	d.pending = value
	d.hasPending = true
	d.gen++
}

// Due reports whether a timer armed for gen should act now.
func (d *Debouncer[T]) Due(gen uint64) bool {
	return d.hasPending && gen == d.gen
}

// Take consumes the pending value. Any timer still outstanding becomes stale.
func (d *Debouncer[T]) Take() (T, bool) {
	value, ok := d.pending, d.hasPending
	d.clear()
	return value, ok
}

// Cancel discards the pending value.
func (d *Debouncer[T]) Cancel() {
	d.clear()
}

func (d *Debouncer[T]) Pending() (T, bool) {
	return d.pending, d.hasPending
}

func (d *Debouncer[T]) clear() {
	var zero T
	d.pending = zero
	d.hasPending = false
	d.gen++
}

// Encode is the value identity used to compare drafts: two values are the
// same draft when their JSON encodings are byte-equal.
func Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func Equal(a, b []byte) bool {
	return a != nil && b != nil && bytes.Equal(a, b)
}
