package offline

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestRedisStoreSetGetRemove(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Set(ctx, "proposal:1", []byte(`{"title":"Bid"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, err := s.Get("offline:proposal:1"); err != nil || got != `{"title":"Bid"}` {
		t.Fatalf("expected prefixed key in redis, got %q (%v)", got, err)
	}

	value, ok, err := store.Get(ctx, "proposal:1")
	if err != nil || !ok || string(value) != `{"title":"Bid"}` {
		t.Fatalf("Get = %q, %v, %v", value, ok, err)
	}

	if err := store.Remove(ctx, "proposal:1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "proposal:1"); ok || err != nil {
		t.Fatalf("expected key to be gone, got ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreRemoveNonExistent(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Remove(context.Background(), "never-written"); err != nil {
		t.Errorf("Remove for non-existent key failed: %v", err)
	}
}

func TestRedisStoreBroadcastsToOtherInstances(t *testing.T) {
	s := miniredis.RunT(t)
	writer, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer reader.Close()

	ctx := context.Background()
	seenByReader := make(chan Change, 2)
	seenByWriter := make(chan Change, 2)
	reader.Subscribe("company:3", func(c Change) { seenByReader <- c })
	writer.Subscribe("company:3", func(c Change) { seenByWriter <- c })

	if err := writer.Set(ctx, "company:3", []byte(`"edited"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	change := waitForChange(t, seenByReader)
	if string(change.Value) != `"edited"` || change.Removed {
		t.Fatalf("unexpected change %+v", change)
	}

	if err := writer.Remove(ctx, "company:3"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if change := waitForChange(t, seenByReader); !change.Removed {
		t.Fatalf("expected removal, got %+v", change)
	}

	select {
	case c := <-seenByWriter:
		t.Fatalf("writer notified of its own change: %+v", c)
	default:
	}
}

func TestRedisValueMirror(t *testing.T) {
	s := miniredis.RunT(t)
	a, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	defer a.Close()
	b, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	mirrored := make(chan Change, 1)
	valueB := Bind[draft](ctx, b, "proposal:5", nil)
	defer valueB.Close()
	b.Subscribe("proposal:5", func(c Change) { mirrored <- c })

	want := draft{Title: "from A"}
	if err := Bind[draft](ctx, a, "proposal:5", nil).Set(ctx, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	waitForChange(t, mirrored)

	// Callback order per key is unspecified; Load also refreshes the mirror.
	if got, ok := valueB.Load(ctx); !ok || got != want {
		t.Fatalf("Load in B = %+v, %v", got, ok)
	}
	if got, ok := valueB.Mirror(); !ok || got != want {
		t.Fatalf("mirror in B = %+v, %v", got, ok)
	}
}

func TestRedisStorePing(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
