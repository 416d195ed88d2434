package group

import "sync"

// WeakRef is an explicit weak handle: relation plus lookup, never ownership.
// The target's true owner clears the handle when the target dies
// independently; resolving to nothing afterwards is a normal, silent case.
type WeakRef[T any] struct {
	mu     sync.Mutex
	target T
	live   bool
}

func NewWeakRef[T any](target T) *WeakRef[T] {
	return &WeakRef[T]{target: target, live: true}
}

// Get resolves the handle. ok is false once the target has been cleared.
func (w *WeakRef[T]) Get() (target T, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target, w.live
}

// Clear drops the reference. The owner calls this when the target is
// destroyed on its own.
func (w *WeakRef[T]) Clear() {
	w.mu.Lock()
	var zero T
	w.target = zero
	w.live = false
	w.mu.Unlock()
}
