package group

import (
	"sync"
	"testing"

	"github.com/liquidhost/jsgroup/engine"
)

func TestGCCallback_RegisterUnregisterCounts(t *testing.T) {
	g := newTestGroup(t)

	cb := func(engine.GCType, engine.GCFlags, any) {}
	other := func(engine.GCType, engine.GCFlags, any) {}

	g.RegisterGCCallback(cb, "data")
	if removed := g.UnregisterGCCallback(cb, "data"); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	// Multiset semantics: one unregister removes all matching pairs.
	g.RegisterGCCallback(cb, "data")
	g.RegisterGCCallback(cb, "data")
	if removed := g.UnregisterGCCallback(cb, "data"); removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}

	// Neither a different callback nor different data matches.
	g.RegisterGCCallback(cb, "data")
	if removed := g.UnregisterGCCallback(other, "data"); removed != 0 {
		t.Fatalf("different callback removed %d entries", removed)
	}
	if removed := g.UnregisterGCCallback(cb, "other-data"); removed != 0 {
		t.Fatalf("different data removed %d entries", removed)
	}
	if removed := g.UnregisterGCCallback(cb, "data"); removed != 1 {
		t.Fatalf("expected the remaining entry removed, got %d", removed)
	}
}

func TestGCCallback_NonComparableData(t *testing.T) {
	g := newTestGroup(t)

	cb := func(engine.GCType, engine.GCFlags, any) {}
	data := []byte{1, 2, 3}
	g.RegisterGCCallback(cb, data)

	// Slice data can be registered but never matched; unregistering must
	// report zero removals instead of panicking on the comparison.
	if removed := g.UnregisterGCCallback(cb, data); removed != 0 {
		t.Fatalf("non-comparable data matched %d entries", removed)
	}

	// The entry is still live and still receives events.
	delivered := 0
	g.RegisterGCCallback(func(_ engine.GCType, _ engine.GCFlags, d any) {
		if b, ok := d.([]byte); ok && len(b) == 3 {
			delivered++
		}
	}, data)
	g.Isolate().NotifyGCPrologue(engine.GCTypeScavenge, engine.GCFlagsNone)
	if delivered != 1 {
		t.Fatalf("expected the slice-data entry delivered once, got %d", delivered)
	}
}

func TestGCPrologue_FanOut(t *testing.T) {
	g := newTestGroup(t)

	type delivery struct {
		gcType engine.GCType
		flags  engine.GCFlags
		data   any
	}
	var mu sync.Mutex
	var got []delivery

	cb := func(gcType engine.GCType, flags engine.GCFlags, data any) {
		mu.Lock()
		got = append(got, delivery{gcType, flags, data})
		mu.Unlock()
	}
	g.RegisterGCCallback(cb, "first")
	g.RegisterGCCallback(cb, "second")

	// The engine notifies synchronously; both entries fire in registration
	// order with their own opaque data.
	g.Isolate().NotifyGCPrologue(engine.GCTypeMarkSweepCompact, engine.GCFlagsNone)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].data != "first" || got[1].data != "second" {
		t.Fatalf("deliveries out of registration order: %+v", got)
	}
	for _, d := range got {
		if d.gcType != engine.GCTypeMarkSweepCompact || d.flags != engine.GCFlagsNone {
			t.Fatalf("wrong event payload: %+v", d)
		}
	}
}

func TestGCPrologue_SilentAfterDispose(t *testing.T) {
	g := newTestGroup(t)

	fired := 0
	g.RegisterGCCallback(func(engine.GCType, engine.GCFlags, any) { fired++ }, nil)

	iso := g.Isolate()
	if err := g.Dispose(t.Context()); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	iso.NotifyGCPrologue(engine.GCTypeScavenge, engine.GCFlagsNone)
	if fired != 0 {
		t.Fatalf("disposed group still received %d GC notifications", fired)
	}
}
