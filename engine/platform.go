package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/liquidhost/jsgroup/errors"
)

// GCType identifies the kind of collection pass the engine is about to run.
type GCType int

const (
	GCTypeScavenge GCType = 1 << iota
	GCTypeMarkSweepCompact
	GCTypeIncrementalMarking
	GCTypeProcessWeakCallbacks

	GCTypeAll GCType = GCTypeScavenge | GCTypeMarkSweepCompact |
		GCTypeIncrementalMarking | GCTypeProcessWeakCallbacks
)

// GCFlags carries engine-specific details about a collection pass.
type GCFlags int

const GCFlagsNone GCFlags = 0

// GCRouter receives GC-prologue notifications for a single isolate. A context
// group installs one to demultiplex the platform-wide hook onto its own
// callback list.
type GCRouter func(gcType GCType, flags GCFlags)

// Platform is the engine runtime. It owns state that would otherwise live in
// process-wide globals: the reference count of attached context groups, the
// isolate registry used to route GC notifications, and the compilation cache
// shared between isolates.
//
// A platform whose reference count has drained to zero is closed and cannot
// be reused; constructing a fresh Platform afterwards is legal.
type Platform struct {
	mu      sync.Mutex
	refs    int
	closed  bool
	cache   wazero.CompilationCache
	routers map[*Isolate]GCRouter
}

func NewPlatform() *Platform {
	return &Platform{
		cache:   wazero.NewCompilationCache(),
		routers: make(map[*Isolate]GCRouter),
	}
}

// Retain increments the platform reference count. Context groups call this
// during construction.
func (p *Platform) Retain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.Closed(errors.PhaseLifecycle, "platform already shut down")
	}
	p.refs++
	return nil
}

// Release decrements the reference count. When the last reference drops the
// platform closes its shared engine state.
func (p *Platform) Release(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.refs == 0 {
		return nil
	}
	p.refs--
	if p.refs > 0 {
		return nil
	}
	p.closed = true
	Logger().Debug("platform shutting down")
	return p.cache.Close(ctx)
}

// NewIsolate creates a fresh engine instance attached to this platform.
func (p *Platform) NewIsolate(ctx context.Context, params CreateParams) (*Isolate, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Closed(errors.PhaseEngine, "platform already shut down")
	}
	cfg := wazero.NewRuntimeConfig().WithCompilationCache(p.cache)
	p.mu.Unlock()

	alloc := params.Allocator
	if alloc == nil {
		alloc = NewAllocator()
	}

	return &Isolate{
		platform: p,
		runtime:  wazero.NewRuntimeWithConfig(ctx, cfg),
		alloc:    alloc,
		snapshot: params.Snapshot,
	}, nil
}

// Register installs the GC router for iso. At most one router may be
// registered per isolate at a time.
func (p *Platform) Register(iso *Isolate, router GCRouter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.routers[iso]; ok {
		return errors.AlreadyRegistered(errors.PhaseLifecycle, "isolate already has a context group")
	}
	p.routers[iso] = router
	return nil
}

// Deregister removes iso from the registry. Removing an isolate that was
// already deregistered is a no-op, which keeps group disposal idempotent.
func (p *Platform) Deregister(iso *Isolate) {
	p.mu.Lock()
	delete(p.routers, iso)
	p.mu.Unlock()
}

// GCPrologue routes a GC-start event for iso to its registered router. The
// router runs synchronously and in full before the registry lock is released,
// so registered callbacks must be fast. An unregistered isolate is ignored.
func (p *Platform) GCPrologue(iso *Isolate, gcType GCType, flags GCFlags) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if router, ok := p.routers[iso]; ok {
		router(gcType, flags)
	}
}
