// Package engine holds the engine-runtime boundary: the Platform that owns
// shared engine state and routes GC notifications, the Isolate handle for a
// single-threaded engine instance, and the Allocator that backs
// engine-managed buffers.
//
// Nothing in this package is goroutine-affine by itself; the affinity rules
// live in the group package, which funnels all engine access through each
// group's owning goroutine.
package engine
