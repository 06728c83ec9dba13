// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import "code.hybscloud.com/atomix"

// dequeNode is one link of the Sundell–Tsigas doubly-linked deque. prev and
// next are single-word tagged links (packed index+deletion-mark); ref is
// the node's incoming-reference count used for safe reclamation without
// hazard pointers or epochs.
type dequeNode[V any] struct {
	prev, next atomix.Uint64
	ref        atomix.Int64
	value      V
}

// packLink encodes idx (-1 for nil) and the deletion mark into one word.
func packLink(idx int, mark bool) uint64 {
	v := uint64(idx+1) << 1
	if mark {
		v |= 1
	}
	return v
}

// unpackLink decodes a link word. idx is -1 if the word encodes nil.
func unpackLink(v uint64) (idx int, mark bool) {
	mark = v&1 != 0
	hi := v >> 1
	if hi == 0 {
		return -1, mark
	}
	return int(hi - 1), mark
}

// Deque is a lock-free doubly-linked deque (Sundell & Tsigas) with a
// bounded node pool. Capacity counts live elements; two additional nodes
// serve as permanent head/tail sentinels and are never counted against it.
//
// Deque is safe for concurrent use by any number of goroutines operating
// at either end. PushFront/PushBack return [ErrOutOfMemory] once the pool
// is exhausted; PopFront/PopBack return [ErrEmpty] when only sentinels
// remain.
type Deque[V any] struct {
	pool    *Pool[dequeNode[V]]
	headIdx int
	tailIdx int
	closed  bool
}

// NewDeque creates an empty deque that can hold up to capacity elements.
// Returns [ErrInvalidArgument] if capacity <= 0.
func NewDeque[V any](capacity int) (*Deque[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidArgument
	}

	pool, err := NewPool[dequeNode[V]](capacity + 2)
	if err != nil {
		return nil, err
	}

	headIdx, head, err := pool.Alloc()
	if err != nil {
		return nil, err
	}
	tailIdx, tail, err := pool.Alloc()
	if err != nil {
		return nil, err
	}
	head.next.StoreRelaxed(packLink(tailIdx, false))
	head.prev.StoreRelaxed(packLink(-1, false))
	tail.prev.StoreRelaxed(packLink(headIdx, false))
	tail.next.StoreRelaxed(packLink(-1, false))

	return &Deque[V]{pool: pool, headIdx: headIdx, tailIdx: tailIdx}, nil
}

func (d *Deque[V]) node(idx int) *dequeNode[V] {
	return d.pool.At(idx)
}

// deref loads link, returning (-1, false) if it is marked deleted, else the
// referenced index with its reference count bumped.
func (d *Deque[V]) deref(link *atomix.Uint64) (int, bool) {
	idx, mark := unpackLink(link.LoadAcquire())
	if mark || idx < 0 {
		return -1, false
	}
	d.node(idx).ref.AddAcqRel(1)
	return idx, true
}

// derefD loads link ignoring the deletion mark and bumps the reference
// count of whatever it points at.
func (d *Deque[V]) derefD(link *atomix.Uint64) int {
	idx, _ := unpackLink(link.LoadAcquire())
	if idx >= 0 {
		d.node(idx).ref.AddAcqRel(1)
	}
	return idx
}

// copyNode bumps idx's reference count, mirroring an additional pointer
// to an already-reachable node being retained.
func (d *Deque[V]) copyNode(idx int) int {
	if idx >= 0 {
		d.node(idx).ref.AddAcqRel(1)
	}
	return idx
}

// rel releases one reference on idx, terminating (and returning to the
// pool) the node once its reference count reaches zero.
func (d *Deque[V]) rel(idx int) {
	if idx < 0 {
		return
	}
	if d.node(idx).ref.AddAcqRel(-1) == 0 {
		d.terminate(idx)
	}
}

// terminate releases a dying node's own prev/next edges and returns its
// fragment to the pool. The source this is grounded on releases prev/next
// but never frees the node itself; this fixes that to actually reclaim it,
// matching the documented invariant that a zero-ref node may be pooled.
func (d *Deque[V]) terminate(idx int) {
	n := d.node(idx)
	if pIdx, _ := unpackLink(n.prev.LoadAcquire()); pIdx >= 0 {
		d.rel(pIdx)
	}
	if nIdx, _ := unpackLink(n.next.LoadAcquire()); nIdx >= 0 {
		d.rel(nIdx)
	}
	d.pool.Free(idx)
}

// markPrev sets the deletion mark on idx's prev link without changing the
// pointer it carries.
func (d *Deque[V]) markPrev(idx int) {
	n := d.node(idx)
	for {
		v := n.prev.LoadAcquire()
		pIdx, mark := unpackLink(v)
		if mark {
			return
		}
		if n.prev.CompareAndSwapAcqRel(v, packLink(pIdx, true)) {
			return
		}
	}
}

// helpDelete physically unlinks a logically-deleted node from its
// predecessor, walking backward over any other deleted nodes it finds
// along the way.
func (d *Deque[V]) helpDelete(nodeIdx int) {
	d.markPrev(nodeIdx)

	last := -1
	prev := d.derefD(&d.node(nodeIdx).prev)
	next := d.derefD(&d.node(nodeIdx).next)

	for prev != next {
		nextNode := d.node(next)
		_, nextMark := unpackLink(nextNode.next.LoadAcquire())
		if nextMark {
			d.markPrev(next)
			next2 := d.derefD(&nextNode.next)
			d.rel(next)
			next = next2
			continue
		}

		prevNode := d.node(prev)
		prev2, ok := d.deref(&prevNode.next)
		if !ok {
			if last != -1 {
				d.markPrev(prev)
				next2 := d.derefD(&prevNode.next)
				lastNode := d.node(last)
				if lastNode.next.CompareAndSwapAcqRel(packLink(prev, false), packLink(next2, false)) {
					d.rel(prev)
				} else {
					d.rel(next2)
				}
				d.rel(prev)
				prev = last
				last = -1
			} else {
				prev2b := d.derefD(&prevNode.prev)
				d.rel(prev)
				prev = prev2b
			}
			continue
		}
		if prev2 != nodeIdx {
			if last != -1 {
				d.rel(last)
			}
			last = prev
			prev = prev2
			continue
		}
		d.rel(prev2)

		if prevNode.next.CompareAndSwapAcqRel(packLink(nodeIdx, false), packLink(next, false)) {
			d.copyNode(next)
			d.rel(nodeIdx)
			break
		}
	}

	if last != -1 {
		d.rel(last)
	}
	d.rel(prev)
	d.rel(next)
}

// helpInsert walks backward from prev, physically unlinking deleted nodes,
// until it finds (or installs) a live predecessor for nodeIdx. It consumes
// the reference on prevIdx the caller passed in and returns an owned
// reference on the result.
func (d *Deque[V]) helpInsert(prevIdx, nodeIdx int) int {
	prev := prevIdx
	last := -1

	for {
		prevNode := d.node(prev)
		prev2, ok := d.deref(&prevNode.next)
		if !ok {
			if last != -1 {
				d.markPrev(prev)
				next2 := d.derefD(&prevNode.next)
				lastNode := d.node(last)
				if lastNode.next.CompareAndSwapAcqRel(packLink(prev, false), packLink(next2, false)) {
					d.rel(prev)
				} else {
					d.rel(next2)
				}
				d.rel(prev)
				prev = last
				last = -1
			} else {
				prev2b := d.derefD(&prevNode.prev)
				d.rel(prev)
				prev = prev2b
			}
			continue
		}

		nodeNode := d.node(nodeIdx)
		link1Raw := nodeNode.prev.LoadAcquire()
		link1Idx, link1Mark := unpackLink(link1Raw)
		if link1Mark {
			d.rel(prev2)
			break
		}
		if prev2 != nodeIdx {
			if last != -1 {
				d.rel(last)
			}
			last = prev
			prev = prev2
			continue
		}
		d.rel(prev2)

		if link1Idx == prev {
			break
		}

		prevNextIdx, _ := unpackLink(prevNode.next.LoadAcquire())
		if prevNextIdx == nodeIdx && nodeNode.prev.CompareAndSwapAcqRel(link1Raw, packLink(prev, false)) {
			d.copyNode(prev)
			d.rel(link1Idx)
			_, prevMarked := unpackLink(prevNode.prev.LoadAcquire())
			if !prevMarked {
				break
			}
		}
	}

	if last != -1 {
		d.rel(last)
	}
	return prev
}

// removeCrossReference rewires nodeIdx's prev/next to bypass any
// logically-deleted immediate neighbours, breaking reference cycles so a
// popped node's retained pointers cannot root extra garbage.
func (d *Deque[V]) removeCrossReference(nodeIdx int) {
	n := d.node(nodeIdx)
	for {
		prevIdx, _ := unpackLink(n.prev.LoadAcquire())
		prevNode := d.node(prevIdx)
		_, prevPrevMark := unpackLink(prevNode.prev.LoadAcquire())
		if prevPrevMark {
			prev2 := d.derefD(&prevNode.prev)
			n.prev.StoreRelease(packLink(prev2, true))
			d.rel(prevIdx)
			continue
		}

		nextIdx, _ := unpackLink(n.next.LoadAcquire())
		nextNode := d.node(nextIdx)
		_, nextPrevMark := unpackLink(nextNode.prev.LoadAcquire())
		if nextPrevMark {
			next2 := d.derefD(&nextNode.next)
			n.next.StoreRelease(packLink(next2, true))
			continue
		}
		break
	}
}

// pushCommon installs next's back-link to the newly-inserted node, and
// consumes the caller's references on both.
func (d *Deque[V]) pushCommon(nodeIdx, nextIdx int) {
	nodeNode := d.node(nodeIdx)
	nextNode := d.node(nextIdx)

	for {
		link1Raw := nextNode.prev.LoadAcquire()
		link1Idx, link1Mark := unpackLink(link1Raw)
		nodeNextIdx, nodeNextMark := unpackLink(nodeNode.next.LoadAcquire())
		if link1Mark || nodeNextIdx != nextIdx || nodeNextMark {
			break
		}
		if nextNode.prev.CompareAndSwapAcqRel(link1Raw, packLink(nodeIdx, false)) {
			d.copyNode(nodeIdx)
			d.rel(link1Idx)
			_, nodePrevMark := unpackLink(nodeNode.prev.LoadAcquire())
			if nodePrevMark {
				prev2 := d.copyNode(nodeIdx)
				prev2 = d.helpInsert(prev2, nextIdx)
				d.rel(prev2)
			}
			break
		}
	}
	d.rel(nextIdx)
	d.rel(nodeIdx)
}

// PushFront inserts value at the front of the deque.
// Returns [ErrOutOfMemory] if the pool is exhausted.
func (d *Deque[V]) PushFront(value V) error {
	nodeIdx, n, err := d.pool.Alloc()
	if err != nil {
		return err
	}
	n.value = value
	n.ref.StoreRelaxed(0)

	prev := d.copyNode(d.headIdx)
	next, _ := d.deref(&d.node(prev).next)
	for {
		prevNode := d.node(prev)
		curNextIdx, curNextMark := unpackLink(prevNode.next.LoadAcquire())
		if curNextIdx != next || curNextMark {
			d.rel(next)
			next, _ = d.deref(&prevNode.next)
			continue
		}
		n.prev.StoreRelaxed(packLink(prev, false))
		n.next.StoreRelaxed(packLink(next, false))
		if prevNode.next.CompareAndSwapAcqRel(packLink(next, false), packLink(nodeIdx, false)) {
			d.copyNode(nodeIdx)
			break
		}
	}

	d.pushCommon(nodeIdx, next)
	return nil
}

// PushBack inserts value at the back of the deque.
// Returns [ErrOutOfMemory] if the pool is exhausted.
func (d *Deque[V]) PushBack(value V) error {
	nodeIdx, n, err := d.pool.Alloc()
	if err != nil {
		return err
	}
	n.value = value
	n.ref.StoreRelaxed(0)

	next := d.copyNode(d.tailIdx)
	prev, _ := d.deref(&d.node(next).prev)
	for {
		prevNode := d.node(prev)
		curNextIdx, curNextMark := unpackLink(prevNode.next.LoadAcquire())
		if curNextIdx != next || curNextMark {
			prev = d.helpInsert(prev, next)
			continue
		}
		n.prev.StoreRelaxed(packLink(prev, false))
		n.next.StoreRelaxed(packLink(next, false))
		if prevNode.next.CompareAndSwapAcqRel(packLink(next, false), packLink(nodeIdx, false)) {
			d.copyNode(nodeIdx)
			break
		}
	}

	d.pushCommon(nodeIdx, next)
	return nil
}

// PopFront removes and returns the value at the front of the deque.
// Returns [ErrEmpty] if the deque holds no elements.
func (d *Deque[V]) PopFront() (V, error) {
	var zero V

	prev := d.copyNode(d.headIdx)
	var nodeIdx int
	for {
		var ok bool
		nodeIdx, ok = d.deref(&d.node(prev).next)
		if !ok {
			continue
		}
		if nodeIdx == d.tailIdx {
			d.rel(nodeIdx)
			d.rel(prev)
			return zero, ErrEmpty
		}

		n := d.node(nodeIdx)
		link1Raw := n.next.LoadAcquire()
		_, link1Mark := unpackLink(link1Raw)
		if link1Mark {
			d.helpDelete(nodeIdx)
			d.rel(nodeIdx)
			continue
		}

		link1Idx, _ := unpackLink(link1Raw)
		if n.next.CompareAndSwapAcqRel(link1Raw, packLink(link1Idx, true)) {
			d.helpDelete(nodeIdx)
			next := d.derefD(&n.next)
			prev = d.helpInsert(prev, next)
			d.rel(prev)
			d.rel(next)
			value := n.value
			d.removeCrossReference(nodeIdx)
			d.rel(nodeIdx)
			return value, nil
		}
		d.rel(nodeIdx)
	}
}

// PopBack removes and returns the value at the back of the deque.
// Returns [ErrEmpty] if the deque holds no elements.
func (d *Deque[V]) PopBack() (V, error) {
	var zero V

	next := d.copyNode(d.tailIdx)
	nodeIdx, _ := d.deref(&d.node(next).prev)
	for {
		nNode := d.node(nodeIdx)
		curNextIdx, curNextMark := unpackLink(nNode.next.LoadAcquire())
		if curNextIdx != next || curNextMark {
			nodeIdx = d.helpInsert(nodeIdx, next)
			continue
		}
		if nodeIdx == d.headIdx {
			d.rel(nodeIdx)
			d.rel(next)
			return zero, ErrEmpty
		}
		if nNode.next.CompareAndSwapAcqRel(packLink(next, false), packLink(next, true)) {
			d.helpDelete(nodeIdx)
			prev := d.derefD(&nNode.prev)
			prev = d.helpInsert(prev, next)
			d.rel(prev)
			d.rel(next)
			value := nNode.value
			d.removeCrossReference(nodeIdx)
			d.rel(nodeIdx)
			return value, nil
		}
	}
}

// Len returns an advisory count of elements currently in the deque (not
// counting sentinels). The value may be stale by the time the caller
// observes it.
func (d *Deque[V]) Len() int {
	n := d.pool.Cap() - d.pool.Freeable()
	n -= 2 // head, tail sentinels always allocated
	if n < 0 {
		n = 0
	}
	return n
}

// Cap returns the deque's capacity (live elements, excluding sentinels).
func (d *Deque[V]) Cap() int {
	return d.pool.Cap() - 2
}

// Snapshot copies the deque's current elements, front to back, into a new
// slice. It is not linearizable with concurrent operations and exists for
// debugging and tests.
func (d *Deque[V]) Snapshot() []V {
	out := make([]V, 0, d.Len())
	idx, _ := unpackLink(d.node(d.headIdx).next.LoadAcquire())
	for idx != d.tailIdx && idx >= 0 {
		out = append(out, d.node(idx).value)
		idx, _ = unpackLink(d.node(idx).next.LoadAcquire())
	}
	return out
}

// Close tears down the deque, releasing its backing node pool. Close is a
// single-threaded operation: the caller must ensure no PushFront/PushBack/
// PopFront/PopBack call is in flight. Close on a nil deque or one already
// closed returns [ErrInvalidArgument].
func (d *Deque[V]) Close() error {
	if d == nil || d.closed {
		return ErrInvalidArgument
	}
	d.closed = true
	return d.pool.Close()
}
