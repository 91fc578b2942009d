package offline

import (
	"context"
	"testing"
	"time"
)

type draft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func waitForChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case change := <-ch:
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return Change{}
	}
}

func TestMemoryStoreSharedAcrossTabs(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	tabA := hub.NewStore()
	tabB := hub.NewStore()
	defer tabA.Close()
	defer tabB.Close()

	seenByA := make(chan Change, 4)
	seenByB := make(chan Change, 4)
	tabA.Subscribe("proposal:1", func(c Change) { seenByA <- c })
	tabB.Subscribe("proposal:1", func(c Change) { seenByB <- c })

	if err := tabA.Set(ctx, "proposal:1", []byte(`"v1"`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	change := waitForChange(t, seenByB)
	if string(change.Value) != `"v1"` || change.Removed {
		t.Fatalf("unexpected change seen by B: %+v", change)
	}
	select {
	case c := <-seenByA:
		t.Fatalf("writer must not be notified of its own write, got %+v", c)
	default:
	}

	value, ok, err := tabB.Get(ctx, "proposal:1")
	if err != nil || !ok || string(value) != `"v1"` {
		t.Fatalf("Get() from B = %q, %v, %v", value, ok, err)
	}

	if err := tabB.Remove(ctx, "proposal:1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if change := waitForChange(t, seenByA); !change.Removed {
		t.Fatalf("expected removal notification, got %+v", change)
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	for _, v := range []string{`"a"`, `"b"`, `"c"`} {
		if err := store.Set(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Set(%s) error = %v", v, err)
		}
	}
	value, ok, _ := store.Get(ctx, "k")
	if !ok || string(value) != `"c"` {
		t.Fatalf("expected newest write to win, got %q", value)
	}
}

func TestSubscribeCancel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	writer := hub.NewStore()
	reader := hub.NewStore()

	calls := 0
	cancel := reader.Subscribe("k", func(Change) { calls++ })
	_ = writer.Set(ctx, "k", []byte(`1`))
	cancel()
	cancel()
	_ = writer.Set(ctx, "k", []byte(`2`))

	if calls != 1 {
		t.Fatalf("expected exactly one notification before cancel, got %d", calls)
	}
}

func TestHubClear(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	store := hub.NewStore()
	_ = store.Set(ctx, "k", []byte(`1`))
	hub.Clear()
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected Clear to drop data")
	}
}

func TestClosedMemoryStoreRejectsWrites(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Close()
	if err := store.Set(context.Background(), "k", []byte(`1`)); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestValueCorruptBackupReturnsDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	if err := store.Set(ctx, "proposal:9", []byte("{not json")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value := Bind[draft](ctx, store, "proposal:9", nil)
	defer value.Close()

	def := draft{Title: "fallback"}
	if got := value.Get(ctx, def); got != def {
		t.Fatalf("expected default for corrupt backup, got %+v", got)
	}
	if _, ok := value.Load(ctx); ok {
		t.Fatal("corrupt backup must read as absent")
	}
	if _, ok := value.Mirror(); ok {
		t.Fatal("corrupt backup must not populate the mirror")
	}
}

func TestValueMirrorFollowsOtherTabs(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	tabA := hub.NewStore()
	tabB := hub.NewStore()

	a := Bind[draft](ctx, tabA, "company:7", nil)
	b := Bind[draft](ctx, tabB, "company:7", nil)
	defer a.Close()
	defer b.Close()

	want := draft{Title: "Acme", Body: "profile"}
	if err := a.Set(ctx, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := b.Mirror()
	if !ok || got != want {
		t.Fatalf("mirror in tab B = %+v, %v", got, ok)
	}

	if err := a.Remove(ctx); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := b.Mirror(); ok {
		t.Fatal("expected removal to clear tab B mirror")
	}
}

func TestValueRemoveIf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	value := Bind[string](ctx, store, "k", nil)
	defer value.Close()

	_ = value.Set(ctx, "newer")
	removed, err := value.RemoveIf(ctx, []byte(`"older"`))
	if err != nil || removed {
		t.Fatalf("RemoveIf(older) = %v, %v; want false, nil", removed, err)
	}
	if got := value.Get(ctx, ""); got != "newer" {
		t.Fatalf("backup should survive, got %q", got)
	}

	removed, err = value.RemoveIf(ctx, []byte(`"newer"`))
	if err != nil || !removed {
		t.Fatalf("RemoveIf(newer) = %v, %v; want true, nil", removed, err)
	}
	if _, ok := value.Load(ctx); ok {
		t.Fatal("expected backup to be removed")
	}
}
