// Package group implements the lifecycle and cross-thread coordination core
// for an embedded script engine: the ContextGroup, the set of script
// execution environments sharing one engine instance.
//
// # Thread affinity
//
// An engine instance is single-threaded-affine: exactly one goroutine, the
// owning goroutine, may touch it. The host, however, creates and releases
// wrapper objects from arbitrary goroutines. The group reconciles the two by
// funnelling all engine work through one delivery channel per group:
//
//	platform := engine.NewPlatform()
//	g, err := group.New(ctx, platform)
//	...
//	go g.Loop().Run()        // the goroutine running the loop owns the engine
//
//	g.Schedule(func() { ... })          // from any goroutine
//	g.ScheduleSync(func() { ... })      // blocks until the loop ran it
//
// Schedule appends to a FIFO queue and raises a wake signal; the wake handle
// is created on demand and torn down when the queue drains, so an idle group
// never keeps its host loop alive. ScheduleSync must not be called from the
// owning goroutine itself; that is detected and rejected.
//
// # Zombies
//
// The host's garbage collector and the engine's native object lifetimes can
// disagree about when an object is unreachable. When a host-side owner drops
// its last reference, the wrapper marks the object a zombie rather than
// disposing it in place:
//
//	g.MarkZombieValue(v)     // any goroutine
//	g.MarkZombieContext(c)
//
// Zombies are drained, in insertion order, as the first step of every
// dispatch cycle on the owning goroutine. A context zombie whose script
// process is still running is a policy violation: the group forcibly ends
// the process through its exit entry point with ContextCollectedExitCode
// before disposing the context.
//
// # Teardown
//
// Dispose is single-shot and idempotent. It disposes every still-live
// managed object, flushes zombies, deregisters the isolate and releases the
// engine instance (or the platform reference, when the isolate was
// borrowed). Objects that want automatic disposal register a weak handle via
// ManageValue or ManageContext; handles whose targets died on their own are
// skipped silently.
package group
