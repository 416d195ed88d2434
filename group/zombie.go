package group

import "go.uber.org/zap"

// ContextCollectedExitCode is the distinguished exit code delivered to a
// context whose host-side owner released it while its script process was
// still running.
const ContextCollectedExitCode = 222

// MarkZombieValue records that the host released its last reference to v and
// defers the native disposal to the owning goroutine. Safe from any
// goroutine. On a group that is already defunct there is no owning loop left
// to defer to, so the value is disposed inline.
func (g *ContextGroup) MarkZombieValue(v Value) {
	if v == nil || g.isSelf(v) {
		return
	}
	if g.defunct.Load() {
		v.Dispose()
		return
	}
	g.zombieMu.Lock()
	g.valueZombies = append(g.valueZombies, v)
	g.zombieMu.Unlock()
	g.metrics.zombiesMarked.Inc(1)

	g.queueMu.Lock()
	g.wakeLocked()
	g.queueMu.Unlock()
}

// MarkZombieContext records that the host released its last reference to c.
// Disposal is deferred to the owning goroutine; if the context turns out to
// be still active when its zombie drains, the forced-exit policy applies.
func (g *ContextGroup) MarkZombieContext(c Context) {
	if c == nil || g.isSelf(c) {
		return
	}
	if g.defunct.Load() {
		c.Dispose()
		return
	}
	g.zombieMu.Lock()
	g.contextZombies = append(g.contextZombies, c)
	g.zombieMu.Unlock()
	g.metrics.zombiesMarked.Inc(1)

	g.queueMu.Lock()
	g.wakeLocked()
	g.queueMu.Unlock()
}

// freeZombies drains both zombie lists in insertion order. It runs as the
// first step of every dispatch cycle and once more during disposal. The
// lists are detached under the zombie lock and disposed outside it, so no
// lock is held across engine calls.
//
// A context zombie that is not yet defunct means the host discarded its
// handle while the script process is still running. Orphaned processes would
// leak indefinitely in a long-running host, so the process is forcibly ended
// through its own exit entry point before the context is disposed.
func (g *ContextGroup) freeZombies() {
	g.zombieMu.Lock()
	values := g.valueZombies
	contexts := g.contextZombies
	g.valueZombies = nil
	g.contextZombies = nil
	g.zombieMu.Unlock()

	for _, v := range values {
		v.Dispose()
		g.metrics.zombiesFreed.Inc(1)
	}

	for _, c := range contexts {
		if !c.IsDefunct() {
			g.forceExit(c)
			g.logger.DPanic("context collected while its process is still running",
				zap.Int("exit_code", ContextCollectedExitCode))
		}
		c.Dispose()
		g.metrics.zombiesFreed.Inc(1)
	}
}

func (g *ContextGroup) forceExit(c Context) {
	g.metrics.forcedExits.Inc(1)
	if g.terminate != nil {
		g.terminate(c, ContextCollectedExitCode)
		return
	}
	c.Exit(ContextCollectedExitCode)
}
