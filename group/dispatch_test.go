package group

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/liquidhost/jsgroup/engine"
	jserrors "github.com/liquidhost/jsgroup/errors"
)

// jserrorsIs matches on the structured (Phase, Kind) pair.
func jserrorsIs(err, target error) bool {
	return stderrors.Is(err, target)
}

func newTestGroup(t *testing.T) *ContextGroup {
	t.Helper()
	return newTestGroupWithOpts(t)
}

func newTestGroupWithOpts(t *testing.T, opts ...Option) *ContextGroup {
	t.Helper()
	ctx := context.Background()
	platform := engine.NewPlatform()
	g, err := New(ctx, platform, opts...)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	t.Cleanup(func() { _ = g.Dispose(context.Background()) })
	return g
}

// recorder collects execution events under a lock; tasks append from the
// owning goroutine, assertions read from the test goroutine.
type recorder struct {
	mu    sync.Mutex
	order []int
	gids  []uint64
}

func (r *recorder) record(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
	r.gids = append(r.gids, goroutineID())
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func TestSchedule_FIFOAcrossGoroutines(t *testing.T) {
	g := newTestGroup(t)
	go g.Loop().Run()

	const producers = 8
	const perProducer = 25
	total := producers * perProducer

	rec := &recorder{}

	// Producers race, but each Schedule call is serialized by seqMu so the
	// expected enqueue order is exactly 0..total-1.
	var seqMu sync.Mutex
	next := 0
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seqMu.Lock()
				id := next
				next++
				err := g.Schedule(func() { rec.record(id) })
				seqMu.Unlock()
				if err != nil {
					t.Errorf("schedule: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	waitUntil(t, 5*time.Second, func() bool { return rec.len() == total })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, id := range rec.order {
		if id != i {
			t.Fatalf("task %d executed at position %d; FIFO order violated", id, i)
		}
	}
	loopGID := rec.gids[0]
	for i, gid := range rec.gids {
		if gid != loopGID {
			t.Fatalf("task %d ran on goroutine %d, expected owning goroutine %d", i, gid, loopGID)
		}
	}
}

func TestSchedule_ThreeTasksThenHandleTeardown(t *testing.T) {
	g := newTestGroup(t)

	rec := &recorder{}
	done := make(chan struct{}, 3)
	schedule := func(id int) {
		if err := g.Schedule(func() {
			rec.record(id)
			done <- struct{}{}
		}); err != nil {
			t.Errorf("schedule %d: %v", id, err)
		}
	}

	// Three different goroutines enqueue A, B, C while the loop is idle;
	// barriers pin the enqueue order.
	stepped := make(chan struct{})
	for i := 0; i < 3; i++ {
		id := i
		go func() {
			schedule(id)
			stepped <- struct{}{}
		}()
		<-stepped
	}

	go g.Loop().Run()
	for i := 0; i < 3; i++ {
		<-done
	}

	rec.mu.Lock()
	order := append([]int(nil), rec.order...)
	rec.mu.Unlock()
	if order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected execution order 0,1,2 got %v", order)
	}

	// After the queue drains the wake mechanism is torn down.
	waitUntil(t, time.Second, func() bool {
		g.queueMu.Lock()
		defer g.queueMu.Unlock()
		return g.async == nil
	})
	waitUntil(t, time.Second, func() bool { return g.Loop().Alive() == 0 })
}

func TestScheduleSync_CompletesBeforeReturn(t *testing.T) {
	g := newTestGroup(t)
	go g.Loop().Run()

	ran := false
	if err := g.ScheduleSync(func() { ran = true }); err != nil {
		t.Fatalf("schedule sync: %v", err)
	}
	if !ran {
		t.Fatal("ScheduleSync returned before the task body executed")
	}
}

func TestScheduleSync_RejectedOnOwningGoroutine(t *testing.T) {
	g := newTestGroup(t)
	go g.Loop().Run()

	errc := make(chan error, 1)
	if err := g.Schedule(func() {
		errc <- g.ScheduleSync(func() {})
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	select {
	case err := <-errc:
		if !jserrorsIs(err, jserrors.OwningThread("")) {
			t.Fatalf("expected owning-thread error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested ScheduleSync deadlocked instead of being rejected")
	}
}

type capturingHandler struct {
	mu       sync.Mutex
	callback any
	arg1     any
	arg2     any
	gid      uint64
	calls    int
}

func (h *capturingHandler) HandleCallback(callback, arg1, arg2 any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = callback
	h.arg1 = arg1
	h.arg2 = arg2
	h.gid = goroutineID()
	h.calls++
}

func TestScheduleCallback_DeliveredThroughCapability(t *testing.T) {
	g := newTestGroup(t)
	go g.Loop().Run()

	h := &capturingHandler{}
	if err := g.ScheduleCallback(Descriptor{
		Receiver: h,
		Callback: "onReady",
		Arg1:     42,
		Arg2:     "payload",
	}); err != nil {
		t.Fatalf("schedule callback: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.calls == 1
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.callback != "onReady" || h.arg1 != 42 || h.arg2 != "payload" {
		t.Fatalf("descriptor delivered with wrong handles: %v %v %v", h.callback, h.arg1, h.arg2)
	}
	if h.gid == goroutineID() {
		t.Fatal("callback delivered on the test goroutine, not the owning goroutine")
	}
}

func TestScheduleCallback_NilReceiverRejected(t *testing.T) {
	g := newTestGroup(t)

	err := g.ScheduleCallback(Descriptor{Callback: "cb"})
	if !jserrorsIs(err, jserrors.InvalidInput(jserrors.PhaseBinding, "")) {
		t.Fatalf("expected binding invalid-input error, got %v", err)
	}
}

func TestScheduleSync_ReleasedByDispose(t *testing.T) {
	ctx := context.Background()
	platform := engine.NewPlatform()
	g, err := New(ctx, platform)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	// The loop never runs, so the task sits queued until disposal discards
	// it. The waiter must be released with a defunct error, not left blocked.
	errc := make(chan error, 1)
	go func() {
		errc <- g.ScheduleSync(func() {})
	}()
	waitUntil(t, time.Second, func() bool {
		g.queueMu.Lock()
		defer g.queueMu.Unlock()
		return len(g.queue) == 1
	})

	if err := g.Dispose(ctx); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	select {
	case err := <-errc:
		if !jserrorsIs(err, jserrors.Defunct("")) {
			t.Fatalf("expected defunct error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleSync still blocked after disposal discarded its task")
	}
}

func TestSchedule_DefunctGroup(t *testing.T) {
	ctx := context.Background()
	platform := engine.NewPlatform()
	g, err := New(ctx, platform)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := g.Dispose(ctx); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	if err := g.Schedule(func() {}); !jserrorsIs(err, jserrors.Defunct("")) {
		t.Fatalf("expected defunct error, got %v", err)
	}
	if err := g.ScheduleSync(func() {}); !jserrorsIs(err, jserrors.Defunct("")) {
		t.Fatalf("expected defunct error, got %v", err)
	}
}
