package group

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/liquidhost/jsgroup/engine"
)

// Value is the contract a wrapped engine value object exposes to its group.
// Dispose releases the native side and must run on the owning goroutine.
type Value interface {
	Dispose()
}

// Context is the contract a script execution environment exposes to its
// group. Exit is the environment's own exit entry point; the zombie
// collector invokes it when a still-active context is finalized by the host.
type Context interface {
	Dispose()
	IsDefunct() bool
	Exit(code int)
}

// TerminationHandler delivers the forced-exit signal for a policy violation.
// The default handler calls ctx.Exit(code); hosts may substitute their own
// delivery, but the distinguished exit code remains part of the contract.
type TerminationHandler func(ctx Context, code int)

// Option configures a context group at construction.
type Option func(*ContextGroup)

// WithMetricsScope attaches a metrics scope; counters default to no-ops.
func WithMetricsScope(scope tally.Scope) Option {
	return func(g *ContextGroup) { g.metrics = newGroupMetrics(scope) }
}

// WithTerminationHandler overrides forced-exit delivery for context zombies.
func WithTerminationHandler(fn TerminationHandler) Option {
	return func(g *ContextGroup) { g.terminate = fn }
}

// ContextGroup owns one engine instance and coordinates every cross-thread
// interaction with it: task dispatch onto the owning goroutine, deferred
// finalization of host-released objects, GC notification fan-out, and
// teardown of everything it agreed to manage.
type ContextGroup struct {
	id       uuid.UUID
	platform *engine.Platform
	isolate  *engine.Isolate
	loop     *Loop

	ownsIsolate bool
	ownsLoop    bool

	startup []byte // owned snapshot blob, released at disposal

	disposing atomic.Bool
	defunct   atomic.Bool

	queueMu sync.Mutex
	queue   []*task
	async   *asyncHandle // wake handle; lazily created, nil while idle

	zombieMu       sync.Mutex
	valueZombies   []Value
	contextZombies []Context

	gcMu        sync.Mutex
	gcCallbacks []gcEntry

	managedMu       sync.Mutex
	managedValues   []*WeakRef[Value]
	managedContexts []*WeakRef[Context]

	terminate TerminationHandler
	metrics   *groupMetrics
	logger    *zap.Logger
}

// New creates a context group with a fresh engine instance the group owns.
// The calling goroutine's loop (returned by Loop) must be run by the thread
// that is to own the engine instance.
func New(ctx context.Context, platform *engine.Platform, opts ...Option) (*ContextGroup, error) {
	if err := platform.Retain(); err != nil {
		return nil, err
	}
	iso, err := platform.NewIsolate(ctx, engine.CreateParams{})
	if err != nil {
		_ = platform.Release(ctx)
		return nil, err
	}
	return newGroup(ctx, platform, iso, true, NewLoop(), true, nil, opts...)
}

// NewWithIsolate adopts a pre-existing engine instance and an externally
// driven loop. The group borrows the isolate: disposal releases the platform
// reference instead of disposing the instance.
func NewWithIsolate(ctx context.Context, platform *engine.Platform, iso *engine.Isolate, loop *Loop, opts ...Option) (*ContextGroup, error) {
	if err := platform.Retain(); err != nil {
		return nil, err
	}
	return newGroup(ctx, platform, iso, false, loop, false, nil, opts...)
}

// NewFromSnapshot creates a group whose engine instance is initialized from
// a serialized snapshot file. A snapshot that cannot be read, fully or at
// all, silently degrades to a default-initialized instance; snapshot
// problems are never surfaced as errors.
func NewFromSnapshot(ctx context.Context, platform *engine.Platform, path string, opts ...Option) (*ContextGroup, error) {
	if err := platform.Retain(); err != nil {
		return nil, err
	}
	alloc := engine.NewAllocator()
	blob := readSnapshot(alloc, path)
	iso, err := platform.NewIsolate(ctx, engine.CreateParams{Allocator: alloc, Snapshot: blob})
	if err != nil {
		_ = platform.Release(ctx)
		return nil, err
	}
	return newGroup(ctx, platform, iso, true, NewLoop(), true, blob, opts...)
}

func newGroup(ctx context.Context, platform *engine.Platform, iso *engine.Isolate, ownsIsolate bool, loop *Loop, ownsLoop bool, startup []byte, opts ...Option) (*ContextGroup, error) {
	g := &ContextGroup{
		id:          uuid.New(),
		platform:    platform,
		isolate:     iso,
		loop:        loop,
		ownsIsolate: ownsIsolate,
		ownsLoop:    ownsLoop,
		startup:     startup,
		metrics:     newGroupMetrics(tally.NoopScope),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = engine.Logger().With(zap.String("group", g.id.String()))

	if err := platform.Register(iso, g.gcPrologue); err != nil {
		if ownsIsolate {
			_ = iso.Dispose(ctx)
		}
		_ = platform.Release(ctx)
		return nil, err
	}
	iso.InstallGCPrologueHook()
	return g, nil
}

// readSnapshot loads the whole snapshot blob into an allocator-owned buffer.
// Any failure, open error, empty file or short read, yields nil so the
// caller falls back to a default-initialized instance.
func readSnapshot(alloc *engine.Allocator, path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return nil
	}
	buf := alloc.AllocateUninitialized(int(info.Size()))
	if _, err := io.ReadFull(f, buf); err != nil {
		alloc.Free(buf)
		return nil
	}
	return buf
}

// ID returns the group's identity used in logs and metrics.
func (g *ContextGroup) ID() uuid.UUID { return g.id }

// Isolate returns the engine instance handle the group coordinates.
func (g *ContextGroup) Isolate() *engine.Isolate { return g.isolate }

// Loop returns the group's event loop. For groups constructed by New or
// NewFromSnapshot the host must run it on the designated owning thread.
func (g *ContextGroup) Loop() *Loop { return g.loop }

// IsDefunct reports whether disposal has marked the group dead.
func (g *ContextGroup) IsDefunct() bool { return g.defunct.Load() }

// ManageValue registers a weak handle to a value the group disposes at its
// own teardown if the value is still live then. There is no unregistration;
// a handle whose target died independently is skipped silently.
func (g *ContextGroup) ManageValue(ref *WeakRef[Value]) {
	g.managedMu.Lock()
	g.managedValues = append(g.managedValues, ref)
	g.managedMu.Unlock()
}

// ManageContext registers a weak handle to a context for disposal at group
// teardown, with the same semantics as ManageValue.
func (g *ContextGroup) ManageContext(ref *WeakRef[Context]) {
	g.managedMu.Lock()
	g.managedContexts = append(g.managedContexts, ref)
	g.managedMu.Unlock()
}

// Dispose tears the group down. It is single-shot: the second and later
// calls are silent no-ops, and reentrant invocation during teardown is
// absorbed the same way. Callers must ensure no concurrent use of the group
// once disposal starts.
func (g *ContextGroup) Dispose(ctx context.Context) error {
	if !g.disposing.CompareAndSwap(false, true) {
		return nil
	}
	g.logger.Debug("disposing context group")

	// Pending tasks never run once teardown begins. Synchronous waiters on
	// discarded tasks are released with a defunct error instead of blocking
	// forever.
	g.queueMu.Lock()
	dropped := g.queue
	g.queue = nil
	g.queueMu.Unlock()
	for _, t := range dropped {
		if t.done != nil {
			t.dropped = true
			close(t.done)
		}
	}

	g.isolate.RemoveGCPrologueHook()

	g.managedMu.Lock()
	values := g.managedValues
	contexts := g.managedContexts
	g.managedValues = nil
	g.managedContexts = nil
	g.managedMu.Unlock()

	for _, ref := range values {
		if v, ok := ref.Get(); ok && v != nil {
			v.Dispose()
		}
	}
	for _, ref := range contexts {
		if c, ok := ref.Get(); ok && c != nil {
			c.Dispose()
		}
	}

	g.defunct.Store(true)
	g.freeZombies()

	g.platform.Deregister(g.isolate)

	var err error
	if g.ownsIsolate {
		err = g.isolate.Dispose(ctx)
	}
	if rerr := g.platform.Release(ctx); err == nil {
		err = rerr
	}

	if g.startup != nil {
		g.isolate.Allocator().Free(g.startup)
		g.startup = nil
	}
	if g.ownsLoop {
		g.loop.Stop()
	}
	return err
}

// isSelf guards against the degenerate cycle of an object marking itself as
// a zombie of the group it is.
func (g *ContextGroup) isSelf(obj any) bool {
	cg, ok := obj.(*ContextGroup)
	return ok && cg == g
}
