// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// node is a Michael–Scott queue link: next is a tagged index word (lo=tag,
// hi=index+1 into the owning arena, 0=nil) and value is the payload.
type node[V any] struct {
	next  atomix.Uint128
	value V
}

const arenaChunkSize = 256

type arenaSlot[V any] struct {
	free atomix.Uint128 // nodeArena's own free-list link, independent of node.next
	n    node[V]
}

type nodeChunk[V any] struct {
	slots []arenaSlot[V]
}

// nodeArena is a logically unbounded, growable analogue of [Pool]: a
// Michael–Scott free list of node slots, backed by an append-only list of
// fixed-size chunks. Growth takes a mutex (amortized, off the hot path);
// Alloc and Free never block on it once a slot is available.
type nodeArena[V any] struct {
	chunks atomic.Pointer[[]*nodeChunk[V]]
	mu     sync.Mutex

	head, tail atomix.Uint128
	freeable   atomix.Int64
}

func newNodeArena[V any]() *nodeArena[V] {
	a := &nodeArena[V]{}
	empty := []*nodeChunk[V]{}
	a.chunks.Store(&empty)
	a.growLocked(true)
	return a
}

func (a *nodeArena[V]) slotAt(idx int) *arenaSlot[V] {
	chunks := *a.chunks.Load()
	c := idx / arenaChunkSize
	o := idx % arenaChunkSize
	return &chunks[c].slots[o]
}

// growLocked appends one chunk of fresh slots to the arena. On bootstrap it
// reserves slot 0 as the arena's own free-list dummy (mirroring [Pool]'s
// construction) instead of enqueuing it.
func (a *nodeArena[V]) growLocked(bootstrap bool) {
	old := *a.chunks.Load()
	chunk := &nodeChunk[V]{slots: make([]arenaSlot[V], arenaChunkSize)}
	base := len(old) * arenaChunkSize
	next := make([]*nodeChunk[V], len(old)+1)
	copy(next, old)
	next[len(old)] = chunk
	a.chunks.Store(&next)

	start := 0
	if bootstrap {
		a.slotAt(base).free.StoreRelaxed(0, 0)
		a.head.StoreRelaxed(0, uint64(base+1))
		a.tail.StoreRelaxed(0, uint64(base+1))
		start = 1
	}
	for i := start; i < arenaChunkSize; i++ {
		a.put(base + i)
	}
}

func (a *nodeArena[V]) grow() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.growLocked(false)
}

func (a *nodeArena[V]) put(idx int) {
	a.slotAt(idx).free.StoreRelease(0, 0)

	sw := spin.Wait{}
	for {
		tailTag, tailHi := a.tail.LoadAcquire()
		tailIdx := int(tailHi - 1)
		nextTag, nextHi := a.slotAt(tailIdx).free.LoadAcquire()

		retag, rehi := a.tail.LoadAcquire()
		if retag != tailTag || rehi != tailHi {
			sw.Once()
			continue
		}

		if nextHi == 0 {
			if a.slotAt(tailIdx).free.CompareAndSwapAcqRel(nextTag, 0, nextTag+1, uint64(idx+1)) {
				a.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, uint64(idx+1))
				a.freeable.AddAcqRel(1)
				return
			}
		} else {
			a.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		}
		sw.Once()
	}
}

func (a *nodeArena[V]) pick() (int, bool) {
	sw := spin.Wait{}
	for {
		headTag, headHi := a.head.LoadAcquire()
		tailTag, tailHi := a.tail.LoadAcquire()
		headIdx := int(headHi - 1)
		_, nextHi := a.slotAt(headIdx).free.LoadAcquire()

		retag, rehi := a.head.LoadAcquire()
		if retag != headTag || rehi != headHi {
			sw.Once()
			continue
		}

		if headHi == tailHi {
			if nextHi == 0 {
				return 0, false
			}
			a.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		} else {
			if a.head.CompareAndSwapAcqRel(headTag, headHi, headTag+1, nextHi) {
				a.freeable.AddAcqRel(-1)
				return headIdx, true
			}
		}
		sw.Once()
	}
}

func (a *nodeArena[V]) alloc() (int, *node[V]) {
	for {
		idx, ok := a.pick()
		if ok {
			return idx, &a.slotAt(idx).n
		}
		a.grow()
	}
}

func (a *nodeArena[V]) free(idx int) {
	var zero V
	a.slotAt(idx).n.value = zero
	a.put(idx)
}

// Queue is an unbounded Michael–Scott lock-free FIFO queue.
//
// Queue is safe for concurrent use by any number of producers and
// consumers. Enqueue never blocks for lack of capacity; Dequeue returns
// [ErrEmpty] rather than blocking when the queue is empty.
type Queue[V any] struct {
	_      pad
	head   atomix.Uint128 // lo=tag, hi=dummy node index+1
	_      pad
	tail   atomix.Uint128
	_      pad
	size   atomix.Int64
	arena  *nodeArena[V]
	closed bool
}

// NewQueue creates an empty FIFO queue.
func NewQueue[V any]() *Queue[V] {
	arena := newNodeArena[V]()
	idx, n := arena.alloc()
	n.next.StoreRelaxed(0, 0)

	q := &Queue[V]{arena: arena}
	q.head.StoreRelaxed(0, uint64(idx+1))
	q.tail.StoreRelaxed(0, uint64(idx+1))
	return q
}

// Enqueue adds value to the back of the queue. Enqueue never returns
// [ErrOutOfMemory]: the underlying node arena grows to accommodate it.
func (q *Queue[V]) Enqueue(value V) error {
	idx, n := q.arena.alloc()
	n.value = value
	n.next.StoreRelease(0, 0)

	sw := spin.Wait{}
	for {
		tailTag, tailHi := q.tail.LoadAcquire()
		tailIdx := int(tailHi - 1)
		nextTag, nextHi := q.arena.slotAt(tailIdx).n.next.LoadAcquire()

		retag, rehi := q.tail.LoadAcquire()
		if retag != tailTag || rehi != tailHi {
			sw.Once()
			continue
		}

		if nextHi == 0 {
			if q.arena.slotAt(tailIdx).n.next.CompareAndSwapAcqRel(nextTag, 0, nextTag+1, uint64(idx+1)) {
				q.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, uint64(idx+1))
				q.size.AddAcqRel(1)
				return nil
			}
		} else {
			q.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		}
		sw.Once()
	}
}

// Dequeue removes and returns the value at the front of the queue.
// Returns [ErrEmpty] if the queue has no elements.
func (q *Queue[V]) Dequeue() (V, error) {
	sw := spin.Wait{}
	for {
		headTag, headHi := q.head.LoadAcquire()
		tailTag, tailHi := q.tail.LoadAcquire()
		headIdx := int(headHi - 1)
		_, nextHi := q.arena.slotAt(headIdx).n.next.LoadAcquire()

		retag, rehi := q.head.LoadAcquire()
		if retag != headTag || rehi != headHi {
			sw.Once()
			continue
		}

		if headHi == tailHi {
			if nextHi == 0 {
				var zero V
				return zero, ErrEmpty
			}
			q.tail.CompareAndSwapAcqRel(tailTag, tailHi, tailTag+1, nextHi)
		} else {
			nextIdx := int(nextHi - 1)
			value := q.arena.slotAt(nextIdx).n.value
			if q.head.CompareAndSwapAcqRel(headTag, headHi, headTag+1, nextHi) {
				q.size.AddAcqRel(-1)
				q.arena.free(headIdx)
				return value, nil
			}
		}
		sw.Once()
	}
}

// Len returns an advisory count of elements currently in the queue. The
// value may be stale by the time the caller observes it.
func (q *Queue[V]) Len() int {
	return int(q.size.LoadAcquire())
}

// Snapshot copies the queue's current elements, front to back, into a new
// slice. It is not linearizable with concurrent Enqueue/Dequeue calls and
// exists for debugging and tests.
func (q *Queue[V]) Snapshot() []V {
	n := q.Len()
	if n < 0 {
		n = 0
	}
	out := make([]V, 0, n)

	_, headHi := q.head.LoadAcquire()
	idx := int(headHi - 1)
	for {
		_, nextHi := q.arena.slotAt(idx).n.next.LoadAcquire()
		if nextHi == 0 {
			break
		}
		nextIdx := int(nextHi - 1)
		out = append(out, q.arena.slotAt(nextIdx).n.value)
		idx = nextIdx
	}
	return out
}

// Close tears down the queue, releasing its backing arena. Close is a
// single-threaded operation: the caller must ensure no Enqueue/Dequeue
// call is in flight. Close on a nil queue or one already closed returns
// [ErrInvalidArgument].
func (q *Queue[V]) Close() error {
	if q == nil || q.closed {
		return ErrInvalidArgument
	}
	q.closed = true
	q.arena = nil
	return nil
}
