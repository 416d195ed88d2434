package group

import (
	"reflect"
	"slices"

	"github.com/liquidhost/jsgroup/engine"
)

// GCCallback is invoked synchronously on the owning goroutine when the
// engine signals a GC-prologue event. Engine-internal GC pauses last for as
// long as callbacks run, so they must be fast.
type GCCallback func(gcType engine.GCType, flags engine.GCFlags, data any)

type gcEntry struct {
	cb   GCCallback
	key  uintptr // callback code pointer, for unregistration matching
	data any
}

// RegisterGCCallback adds (cb, data) to the group's notification list.
// Registration has multiset semantics: registering the same pair twice
// yields two deliveries per event unless the caller deduplicates.
func (g *ContextGroup) RegisterGCCallback(cb GCCallback, data any) {
	if cb == nil {
		return
	}
	g.gcMu.Lock()
	g.gcCallbacks = append(g.gcCallbacks, gcEntry{
		cb:   cb,
		key:  reflect.ValueOf(cb).Pointer(),
		data: data,
	})
	g.gcMu.Unlock()
}

// UnregisterGCCallback removes every entry whose callback identity and data
// both match, and returns how many were removed. Go functions are not
// comparable, so callback identity is the function's code pointer; data is
// compared with ==, and data of a non-comparable type (slice, map, func)
// never matches.
func (g *ContextGroup) UnregisterGCCallback(cb GCCallback, data any) int {
	if cb == nil {
		return 0
	}
	key := reflect.ValueOf(cb).Pointer()

	g.gcMu.Lock()
	defer g.gcMu.Unlock()
	before := len(g.gcCallbacks)
	g.gcCallbacks = slices.DeleteFunc(g.gcCallbacks, func(e gcEntry) bool {
		return e.key == key && dataEqual(e.data, data)
	})
	return before - len(g.gcCallbacks)
}

// dataEqual compares opaque callback data without panicking on
// non-comparable dynamic types. Registration accepts any data, so the
// interface comparison must be guarded here.
func dataEqual(a, b any) bool {
	if t := reflect.TypeOf(a); t != nil && !t.Comparable() {
		return false
	}
	if t := reflect.TypeOf(b); t != nil && !t.Comparable() {
		return false
	}
	return a == b
}

// gcPrologue is the group's GC router, installed in the platform registry at
// construction. It fans the event out to every registered callback, in
// registration order and in full.
func (g *ContextGroup) gcPrologue(gcType engine.GCType, flags engine.GCFlags) {
	g.gcMu.Lock()
	entries := slices.Clone(g.gcCallbacks)
	g.gcMu.Unlock()

	for _, e := range entries {
		e.cb(gcType, flags, e.data)
	}
	g.metrics.gcNotifications.Inc(1)
}
