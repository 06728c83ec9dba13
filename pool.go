// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Pool is a bounded lock-free memory pool of fixed-size fragments holding
// values of type T.
//
// Internally Pool is itself a Michael–Scott queue of fragments: the
// fragment currently at the head of that queue acts as a dummy/sentinel and
// is handed out whole by the next Alloc, while the fragment that was next
// in line becomes the new dummy. This avoids any extra bookkeeping
// allocation for the free list itself — every fragment, including the
// initial dummy, eventually gets allocated out and returned.
//
// A Pool created with capacity n holds n+1 fragments and can satisfy n
// concurrent Alloc calls before Free is required to replenish it.
type Pool[T any] struct {
	_        pad
	head     atomix.Uint128 // lo=tag, hi=index+1 of the current dummy fragment
	_        pad
	tail     atomix.Uint128 // lo=tag, hi=index+1
	_        pad
	freeable atomix.Int64 // advisory count of currently-free fragments
	slots    []poolSlot[T]
	capacity int
	closed   bool
}

type poolSlot[T any] struct {
	next atomix.Uint128 // lo=tag, hi=next index+1 (0 = nil)
	val  T
}

// NewPool creates a pool holding up to capacity fragments of T.
// Returns [ErrInvalidArgument] if capacity <= 0.
func NewPool[T any](capacity int) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidArgument
	}

	p := &Pool[T]{
		slots:    make([]poolSlot[T], capacity+1),
		capacity: capacity,
	}
	p.reset()
	return p, nil
}

func (p *Pool[T]) reset() {
	for i := range p.slots {
		var zero T
		p.slots[i].val = zero
	}
	p.slots[0].next.StoreRelaxed(0, 0)
	p.head.StoreRelaxed(0, 1)
	p.tail.StoreRelaxed(0, 1)
	p.freeable.StoreRelaxed(0)
	for i := 1; i <= p.capacity; i++ {
		p.put(i)
	}
}

// put enqueues fragment idx onto the free-list queue.
func (p *Pool[T]) put(idx int) {
	p.slots[idx].next.StoreRelease(0, 0)

	sw := spin.Wait{}
	for {
		tailTag, tailHi := p.tail.LoadAcquire()
		tailIdx := int(tailHi - 1)
		nextTag, nextHi := p.slots[tailIdx].next.LoadAcquire()

		retag, rehi := p.tail.LoadAcquire()
		if retag != tailTag || rehi != tailHi {
			sw.Once()
			continue
		}

		if nextHi == 0 {
			if p.slots[tailIdx].next.CompareAndSwapAcqRel(nextTag, 0, nextTag+1, uint64(idx+1)) {
				p.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, uint64(idx+1))
				p.freeable.AddAcqRel(1)
				return
			}
		} else {
			p.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		}
		sw.Once()
	}
}

// pick dequeues the current dummy fragment's index from the free-list
// queue, promoting the next fragment to dummy.
func (p *Pool[T]) pick() (int, error) {
	sw := spin.Wait{}
	for {
		headTag, headHi := p.head.LoadAcquire()
		tailTag, tailHi := p.tail.LoadAcquire()
		headIdx := int(headHi - 1)
		_, nextHi := p.slots[headIdx].next.LoadAcquire()

		retag, rehi := p.head.LoadAcquire()
		if retag != headTag || rehi != headHi {
			sw.Once()
			continue
		}

		if headHi == tailHi {
			if nextHi == 0 {
				return 0, ErrOutOfMemory
			}
			p.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		} else {
			if p.head.CompareAndSwapAcqRel(headTag, headHi, headTag+1, nextHi) {
				p.freeable.AddAcqRel(-1)
				return headIdx, nil
			}
		}
		sw.Once()
	}
}

// Alloc removes a fragment from the free list and returns its index plus a
// pointer to its zero-valued slot for in-place initialization. Returns
// [ErrOutOfMemory] if the pool has no free fragments.
func (p *Pool[T]) Alloc() (int, *T, error) {
	idx, err := p.pick()
	if err != nil {
		return 0, nil, err
	}
	return idx, &p.slots[idx].val, nil
}

// Free returns the fragment at idx (previously returned by Alloc) to the
// free list. idx must not be reused or freed again until a later Alloc
// returns it.
func (p *Pool[T]) Free(idx int) {
	var zero T
	p.slots[idx].val = zero
	p.put(idx)
}

// At returns a pointer to the value stored at idx. idx must currently be
// allocated (returned by Alloc and not yet Freed).
func (p *Pool[T]) At(idx int) *T {
	return &p.slots[idx].val
}

// Cap returns the pool's fragment capacity.
func (p *Pool[T]) Cap() int {
	return p.capacity
}

// Freeable returns an advisory count of currently-free fragments. The value
// may be stale by the time the caller observes it.
func (p *Pool[T]) Freeable() int {
	return int(p.freeable.LoadRelaxed())
}

// Contains reports whether idx is a valid fragment index for this pool.
//
// The corresponding C routine (mempool_contains) bounded the valid byte
// range as fragment_bytes*capacity, one fragment short of the pool's
// actual capacity+1 fragments; the corrected bound used here is
// capacity+1 fragments, i.e. every index in [0, capacity].
func (p *Pool[T]) Contains(idx int) bool {
	return idx >= 0 && idx < len(p.slots)
}

// Clear resets the pool to its just-created state. Clear is not safe to
// call concurrently with Alloc or Free.
func (p *Pool[T]) Clear() {
	p.reset()
}

// DataBytes returns the size in bytes of one element of type T. This
// mirrors the original C memory pool's mempool_data_bytes, which reports
// the caller-requested payload size rather than the internally padded
// fragment size.
func (p *Pool[T]) DataBytes() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Close tears down the pool, releasing its backing storage. Close is a
// single-threaded operation: the caller must ensure no Alloc/Free call is
// in flight. Close on a nil pool or one already closed returns
// [ErrInvalidArgument].
func (p *Pool[T]) Close() error {
	if p == nil || p.closed {
		return ErrInvalidArgument
	}
	p.closed = true
	p.slots = nil
	return nil
}
