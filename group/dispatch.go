package group

import (
	"go.uber.org/zap"

	"github.com/liquidhost/jsgroup/engine"
	"github.com/liquidhost/jsgroup/errors"
)

// Schedule enqueues fn for execution on the owning goroutine. Safe to call
// from any goroutine; tasks run in strict FIFO enqueue order, one at a time.
func (g *ContextGroup) Schedule(fn Runnable) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "nil runnable")
	}
	return g.enqueue(&task{run: fn})
}

// ScheduleCallback enqueues a host-callback descriptor. The receiver
// capability is checked here, at scheduling time; a descriptor that loses
// its handler before delivery indicates a broken binding-layer contract and
// is fatal at delivery.
func (g *ContextGroup) ScheduleCallback(desc Descriptor) error {
	if desc.Receiver == nil {
		return errors.InvalidInput(errors.PhaseBinding, "descriptor has no callback receiver")
	}
	return g.enqueue(&task{desc: &desc})
}

// ScheduleSync enqueues fn and blocks the calling goroutine until the owning
// goroutine has executed it. Never call this from the owning goroutine: the
// task could not run while its scheduler waits, so the call is rejected with
// an owning-thread error instead of deadlocking. Callers must also not hold
// any lock fn needs.
//
// There is no timeout; if the owning loop is wedged the call blocks
// indefinitely.
func (g *ContextGroup) ScheduleSync(fn Runnable) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseDispatch, "nil runnable")
	}
	if g.loop.OnLoop() {
		return errors.OwningThread("ScheduleSync called from the owning goroutine")
	}
	t := &task{run: fn, done: make(chan struct{})}
	if err := g.enqueue(t); err != nil {
		return err
	}
	<-t.done
	if t.dropped {
		return errors.Defunct("context group disposed before the task ran")
	}
	return nil
}

func (g *ContextGroup) enqueue(t *task) error {
	if g.defunct.Load() {
		return errors.Defunct("context group disposed")
	}
	g.queueMu.Lock()
	g.queue = append(g.queue, t)
	g.wakeLocked()
	g.queueMu.Unlock()
	g.metrics.tasksScheduled.Inc(1)
	return nil
}

// wakeLocked ensures a wake signal is pending for the owning loop. The wake
// handle is created on demand and signalled immediately; drain tears it down
// once the queue empties. Callers hold queueMu, which also guards the
// handle's lifecycle.
func (g *ContextGroup) wakeLocked() {
	if g.async == nil {
		g.async = g.loop.newAsync(g.drain)
	}
	g.async.send()
}

// drain is the dispatch cycle, executed only on the owning goroutine in
// response to a wake signal. Zombies go first, then queued tasks in FIFO
// order. The queue lock is released around each task body so other
// goroutines can keep enqueueing while a task runs.
func (g *ContextGroup) drain() {
	for {
		g.freeZombies()

		g.queueMu.Lock()
		for len(g.queue) > 0 {
			t := g.queue[0]
			g.queue = g.queue[1:]
			g.queueMu.Unlock()
			g.execute(t)
			g.queueMu.Lock()
		}
		// A zombie marked while a task body ran signalled the handle this
		// cycle is about to tear down; it must drain now, not on the next
		// unrelated wake.
		g.zombieMu.Lock()
		again := len(g.valueZombies) > 0 || len(g.contextZombies) > 0
		g.zombieMu.Unlock()
		if again {
			g.queueMu.Unlock()
			continue
		}
		// Tear the wake handle down while still holding the queue lock: an
		// enqueue that raced past the checks above will find async nil and
		// create a fresh handle, so nothing is stranded.
		if g.async != nil {
			g.async.close()
			g.async = nil
		}
		g.queueMu.Unlock()
		return
	}
}

func (g *ContextGroup) execute(t *task) {
	defer func() {
		if t.done != nil {
			close(t.done)
		}
		g.metrics.tasksExecuted.Inc(1)
	}()

	if t.run != nil {
		t.run()
		return
	}
	g.deliver(t.desc)
}

// deliver hands a descriptor to its receiver's callback capability. A
// missing handler is a binding-layer programming error, not a runtime
// condition; it aborts.
func (g *ContextGroup) deliver(desc *Descriptor) {
	if desc == nil || desc.Receiver == nil {
		engine.Logger().Fatal("no callback entry point reachable for scheduled descriptor",
			zap.String("group", g.id.String()))
		return
	}
	desc.Receiver.HandleCallback(desc.Callback, desc.Arg1, desc.Arg2)
}
