// Package jsgroup provides safe, leak-free coordination between a
// garbage-collected host application and an embedded, thread-affine script
// engine.
//
// The engine boundary lives in the engine package (Platform, Isolate,
// Allocator); the concurrency core lives in the group package
// (ContextGroup, Loop, the zombie collector and the GC notification
// fan-out). See those packages for usage.
package jsgroup
