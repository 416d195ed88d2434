package group

// Runnable is a native unit of deferred work executed on the owning
// goroutine. A runnable handles its own errors; the dispatcher provides no
// catch-and-report channel.
type Runnable func()

// CallbackHandler is the capability a host-binding receiver grants the
// dispatcher: delivery of one callback handle with its two opaque argument
// handles. The capability is resolved once at scheduling time instead of
// being looked up per delivery.
type CallbackHandler interface {
	HandleCallback(callback, arg1, arg2 any)
}

// Descriptor identifies a host callback to deliver on the owning goroutine.
// The handles are opaque to this package; only the receiver knows how to
// interpret them.
type Descriptor struct {
	Receiver CallbackHandler
	Callback any
	Arg1     any
	Arg2     any
}

// task is a queued unit of work: either a native closure or a host-callback
// descriptor. The queue owns it exclusively from enqueue until execution.
type task struct {
	run  Runnable
	desc *Descriptor
	done chan struct{} // non-nil for synchronous scheduling

	// dropped is set before done closes when disposal discards the task
	// unexecuted; the synchronous waiter reads it after the close.
	dropped bool
}
