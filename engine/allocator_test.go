package engine

import "testing"

func TestAllocator_AllocateZeroed(t *testing.T) {
	a := NewAllocator()

	// Dirty a buffer, return it, and allocate again: the zeroing variant
	// must never leak previous contents even through the pool.
	buf := a.AllocateUninitialized(64)
	for i := range buf {
		buf[i] = 0xff
	}
	a.Free(buf)

	buf = a.Allocate(32)
	if len(buf) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(buf))
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, b)
		}
	}
}

func TestAllocator_UninitializedLength(t *testing.T) {
	a := NewAllocator()

	buf := a.AllocateUninitialized(128)
	if len(buf) != 128 {
		t.Fatalf("expected 128 bytes, got %d", len(buf))
	}
	a.Free(buf)

	// A larger request after freeing a smaller buffer must still be sized
	// correctly.
	buf = a.AllocateUninitialized(256)
	if len(buf) != 256 {
		t.Fatalf("expected 256 bytes, got %d", len(buf))
	}

	a.Free(nil) // tolerated
}
