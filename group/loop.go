package group

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// goroutineID returns the numeric id of the calling goroutine. The loop
// records it while running so blocking calls issued from the loop itself can
// be rejected instead of self-deadlocking.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// first line reads "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Loop drives a context group's owning goroutine. It is the event-loop
// abstraction the dispatcher signals into: cross-thread callers wake it
// through async handles, and the goroutine running Run executes the handle
// callbacks one at a time.
//
// Concurrency across loops is unconstrained; each group is independent.
type Loop struct {
	mu      sync.Mutex
	fired   []*asyncHandle
	handles int

	notify   chan struct{}
	stopc    chan struct{}
	stopOnce sync.Once

	gid atomic.Uint64
}

func NewLoop() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		stopc:  make(chan struct{}),
	}
}

// Run processes wake signals on the calling goroutine until Stop is called.
// The calling goroutine becomes the loop's owning goroutine for the duration.
func (l *Loop) Run() {
	l.gid.Store(goroutineID())
	defer l.gid.Store(0)
	for {
		select {
		case <-l.notify:
			l.dispatch()
		case <-l.stopc:
			// run anything already signalled, then leave
			l.dispatch()
			return
		}
	}
}

// Stop makes Run return after the current callback completes. Idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopc) })
}

// OnLoop reports whether the caller is the loop's owning goroutine.
func (l *Loop) OnLoop() bool {
	gid := l.gid.Load()
	return gid != 0 && gid == goroutineID()
}

// Alive returns the number of active async handles. A group with no pending
// work holds zero handles, so an idle group never keeps its loop alive.
func (l *Loop) Alive() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles
}

func (l *Loop) dispatch() {
	for {
		l.mu.Lock()
		if len(l.fired) == 0 {
			l.mu.Unlock()
			return
		}
		h := l.fired[0]
		l.fired = l.fired[1:]
		l.mu.Unlock()
		h.invoke()
	}
}

func (l *Loop) newAsync(cb func()) *asyncHandle {
	h := &asyncHandle{loop: l, cb: cb}
	l.mu.Lock()
	l.handles++
	l.mu.Unlock()
	return h
}

// asyncHandle is the cross-thread wake mechanism. send may be called from
// any goroutine; the callback runs on the loop goroutine. Sends coalesce
// while a wake is already pending.
type asyncHandle struct {
	loop    *Loop
	cb      func()
	pending atomic.Bool
	closed  atomic.Bool
}

func (h *asyncHandle) send() {
	if h.closed.Load() {
		return
	}
	if !h.pending.CompareAndSwap(false, true) {
		return
	}
	l := h.loop
	l.mu.Lock()
	l.fired = append(l.fired, h)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (h *asyncHandle) invoke() {
	if h.closed.Load() {
		return
	}
	h.pending.Store(false)
	h.cb()
}

// close tears the handle down; a closed handle never fires again.
func (h *asyncHandle) close() {
	if h.closed.Swap(true) {
		return
	}
	l := h.loop
	l.mu.Lock()
	l.handles--
	l.mu.Unlock()
}
