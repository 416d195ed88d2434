package engine

import (
	"context"
	stderrors "errors"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/liquidhost/jsgroup/errors"
)

// CreateParams configure a new isolate.
type CreateParams struct {
	// Allocator backs engine-managed binary buffers. Nil gets a fresh one.
	Allocator *Allocator
	// Snapshot is an optional serialized heap image the isolate starts from.
	Snapshot []byte
}

// Isolate is a single engine execution instance. Engine state must only be
// touched from the isolate's owning goroutine; cross-thread callers go
// through the owning context group instead of calling methods here directly.
//
// The instance is backed by its own wazero runtime: the embedded script
// engine ships as a WebAssembly build and every isolate owns the runtime
// that executes it.
type Isolate struct {
	platform *Platform
	runtime  wazero.Runtime
	alloc    *Allocator
	snapshot []byte

	wasiOnce sync.Once

	mu         sync.Mutex
	disposed   bool
	hooked     bool
	terminated bool
	exitCode   int
}

// Allocator returns the buffer allocator backing this isolate.
func (i *Isolate) Allocator() *Allocator { return i.alloc }

// Snapshot returns the startup-data blob the isolate was created from, or nil.
func (i *Isolate) Snapshot() []byte { return i.snapshot }

// InstallGCPrologueHook connects this isolate's GC-start events to the
// platform fan-out. Groups install it at construction.
func (i *Isolate) InstallGCPrologueHook() {
	i.mu.Lock()
	i.hooked = true
	i.mu.Unlock()
}

// RemoveGCPrologueHook detaches the isolate from the platform fan-out.
func (i *Isolate) RemoveGCPrologueHook() {
	i.mu.Lock()
	i.hooked = false
	i.mu.Unlock()
}

// NotifyGCPrologue is the engine-facing entry point: the engine calls it
// immediately before starting a collection pass. The event is routed through
// the platform registry to the owning group's callback list.
func (i *Isolate) NotifyGCPrologue(gcType GCType, flags GCFlags) {
	i.mu.Lock()
	hooked := i.hooked
	i.mu.Unlock()
	if hooked {
		i.platform.GCPrologue(i, gcType, flags)
	}
}

// ModuleIO carries the standard streams for RunModule. Zero-value fields
// leave the corresponding stream unwired.
type ModuleIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunModule instantiates an engine binary and runs it to completion on the
// calling goroutine. The caller is responsible for being on the owning
// thread; cross-thread callers schedule this through the context group.
//
// A clean engine exit (explicit exit with code 0 included) returns nil.
func (i *Isolate) RunModule(ctx context.Context, wasm []byte, stdio ModuleIO, args ...string) error {
	i.mu.Lock()
	if i.disposed || i.terminated {
		i.mu.Unlock()
		return errors.Closed(errors.PhaseEngine, "isolate no longer accepts execution")
	}
	i.mu.Unlock()

	i.wasiOnce.Do(func() {
		wasi_snapshot_preview1.MustInstantiate(ctx, i.runtime)
	})

	cfg := wazero.NewModuleConfig().WithName("").WithArgs(args...)
	if stdio.Stdin != nil {
		cfg = cfg.WithStdin(stdio.Stdin)
	}
	if stdio.Stdout != nil {
		cfg = cfg.WithStdout(stdio.Stdout)
	}
	if stdio.Stderr != nil {
		cfg = cfg.WithStderr(stdio.Stderr)
	}

	mod, err := i.runtime.InstantiateWithConfig(ctx, wasm, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return nil
		}
		return errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "run engine module")
	}
	return mod.Close(ctx)
}

// TerminateExecution forcibly ends script execution inside the isolate,
// recording the distinguished exit code. Further RunModule calls fail.
func (i *Isolate) TerminateExecution(ctx context.Context, code int) {
	i.mu.Lock()
	if i.terminated || i.disposed {
		i.mu.Unlock()
		return
	}
	i.terminated = true
	i.exitCode = code
	i.mu.Unlock()

	Logger().Warn("isolate execution terminated", zap.Int("exit_code", code))
	if err := i.runtime.CloseWithExitCode(ctx, uint32(code)); err != nil {
		Logger().Warn("terminate isolate", zap.Error(err))
	}
}

// Terminated reports whether execution was forcibly ended, and with what code.
func (i *Isolate) Terminated() (code int, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.exitCode, i.terminated
}

// Dispose releases the engine instance. Idempotent.
func (i *Isolate) Dispose(ctx context.Context) error {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return nil
	}
	i.disposed = true
	i.mu.Unlock()
	return i.runtime.Close(ctx)
}
