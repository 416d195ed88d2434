package engine

import "sync"

// Allocator supplies raw memory for engine-managed binary buffers.
// Buffers are recycled through a pool so repeated engine churn does not
// translate into Go GC pressure.
type Allocator struct {
	pool sync.Pool
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns a zero-initialized buffer of n bytes.
func (a *Allocator) Allocate(n int) []byte {
	buf := a.AllocateUninitialized(n)
	clear(buf)
	return buf
}

// AllocateUninitialized returns a buffer of n bytes whose contents are
// unspecified. Use when the caller overwrites the whole buffer anyway.
func (a *Allocator) AllocateUninitialized(n int) []byte {
	if v := a.pool.Get(); v != nil {
		buf := *v.(*[]byte)
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]byte, n)
}

// Free returns buf to the pool. The caller must not touch buf afterwards.
func (a *Allocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	buf = buf[:cap(buf)]
	a.pool.Put(&buf)
}
