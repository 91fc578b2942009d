package debounce

import "testing"

func TestBurstCoalescesToLastValue(t *testing.T) {
	var d Debouncer[string]
	var gens []uint64
	for _, v := range []string{"a", "ab", "abc"} {
		gens = append(gens, d.Push(v))
	}

	for _, stale := range gens[:2] {
		if d.Due(stale) {
			t.Fatalf("stale generation %d reported due", stale)
		}
	}
	if !d.Due(gens[2]) {
		t.Fatal("latest generation should be due")
	}
	value, ok := d.Take()
	if !ok || value != "abc" {
		t.Fatalf("Take() = %q, %v; want abc, true", value, ok)
	}
	if d.Due(gens[2]) {
		t.Fatal("generation must not be due twice")
	}
	if _, ok := d.Take(); ok {
		t.Fatal("second Take() should find nothing pending")
	}
}

func TestTakeInvalidatesOutstandingTimer(t *testing.T) {
	var d Debouncer[int]
	gen := d.Push(1)
	if v, ok := d.Take(); !ok || v != 1 {
		t.Fatalf("Take() = %d, %v", v, ok)
	}
	if d.Due(gen) {
		t.Fatal("manual take must make the debounced timer stale")
	}
}

func TestHoldInvalidatesTimer(t *testing.T) {
	var d Debouncer[int]
	gen := d.Push(1)
	d.Hold(2)
	if d.Due(gen) {
		t.Fatal("held value must not be fired by an older timer")
	}
	if v, ok := d.Pending(); !ok || v != 2 {
		t.Fatalf("Pending() = %d, %v", v, ok)
	}
}

func TestCancel(t *testing.T) {
	var d Debouncer[int]
	gen := d.Push(5)
	d.Cancel()
	if d.Due(gen) {
		t.Fatal("cancelled timer must not be due")
	}
	if _, ok := d.Pending(); ok {
		t.Fatal("cancel must drop the pending value")
	}
}

func TestEqualByValue(t *testing.T) {
	type doc struct {
		Title string
		Tags  map[string]int
	}
	a, _ := Encode(doc{Title: "x", Tags: map[string]int{"b": 2, "a": 1}})
	b, _ := Encode(doc{Title: "x", Tags: map[string]int{"a": 1, "b": 2}})
	c, _ := Encode(doc{Title: "y"})

	if !Equal(a, b) {
		t.Fatal("equal values must compare equal regardless of identity")
	}
	if Equal(a, c) {
		t.Fatal("different values compared equal")
	}
	if Equal(nil, nil) {
		t.Fatal("missing encodings must never compare equal")
	}
}
