// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

type stackNode[V any] struct {
	next  atomix.Uint128 // lo=tag, hi=index+1 (0=nil); shared by both lists below
	value V
}

// Stack is a bounded lock-free LIFO stack (Treiber stack) with an internal
// freelist carved out of one pre-allocated array, so Push never calls the
// Go allocator.
//
// Stack is safe for concurrent use by any number of goroutines. Push
// returns [ErrOutOfMemory] once capacity is exhausted; Pop returns
// [ErrEmpty] on an empty stack. The corresponding C implementation
// returned ENOMEM for both cases; here they are distinguished, since a pop
// on empty is not a resource failure.
type Stack[V any] struct {
	_        pad
	head     atomix.Uint128 // live LIFO list: lo=tag, hi=index+1
	_        pad
	free     atomix.Uint128 // freelist: lo=tag, hi=index+1
	_        pad
	size     atomix.Int64
	nodes    []stackNode[V]
	capacity int
	closed   bool
}

// NewStack creates a stack that can hold up to capacity elements.
// Returns [ErrInvalidArgument] if capacity <= 0.
func NewStack[V any](capacity int) (*Stack[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidArgument
	}

	s := &Stack[V]{
		nodes:    make([]stackNode[V], capacity),
		capacity: capacity,
	}

	for i := 0; i < capacity-1; i++ {
		s.nodes[i].next.StoreRelaxed(0, uint64(i+2))
	}
	s.nodes[capacity-1].next.StoreRelaxed(0, 0)

	s.head.StoreRelaxed(0, 0)
	s.free.StoreRelaxed(0, 1)
	s.size.StoreRelaxed(0)

	return s, nil
}

func (s *Stack[V]) popList(list *atomix.Uint128) (int, bool) {
	sw := spin.Wait{}
	for {
		tag, hi := list.LoadAcquire()
		if hi == 0 {
			return 0, false
		}
		idx := int(hi - 1)
		_, nextHi := s.nodes[idx].next.LoadAcquire()
		if list.CompareAndSwapAcqRel(tag, hi, tag+1, nextHi) {
			return idx, true
		}
		sw.Once()
	}
}

func (s *Stack[V]) pushList(list *atomix.Uint128, idx int) {
	sw := spin.Wait{}
	for {
		tag, hi := list.LoadAcquire()
		s.nodes[idx].next.StoreRelaxed(0, hi)
		if list.CompareAndSwapAcqRel(tag, hi, tag+1, uint64(idx+1)) {
			return
		}
		sw.Once()
	}
}

// Push adds value to the top of the stack.
// Returns [ErrOutOfMemory] if the stack is at capacity.
func (s *Stack[V]) Push(value V) error {
	idx, ok := s.popList(&s.free)
	if !ok {
		return ErrOutOfMemory
	}
	s.nodes[idx].value = value
	s.pushList(&s.head, idx)
	s.size.AddAcqRel(1)
	return nil
}

// Pop removes and returns the value at the top of the stack.
// Returns [ErrEmpty] if the stack is empty.
func (s *Stack[V]) Pop() (V, error) {
	idx, ok := s.popList(&s.head)
	if !ok {
		var zero V
		return zero, ErrEmpty
	}
	value := s.nodes[idx].value
	var zero V
	s.nodes[idx].value = zero
	s.size.AddAcqRel(-1)
	s.pushList(&s.free, idx)
	return value, nil
}

// Len returns an advisory count of elements currently on the stack. The
// value may be stale by the time the caller observes it.
func (s *Stack[V]) Len() int {
	return int(s.size.LoadAcquire())
}

// Cap returns the stack's capacity.
func (s *Stack[V]) Cap() int {
	return s.capacity
}

// Close tears down the stack, releasing its backing array. Close is a
// single-threaded operation: the caller must ensure no Push/Pop call is
// in flight. Close on a nil stack or one already closed returns
// [ErrInvalidArgument].
func (s *Stack[V]) Close() error {
	if s == nil || s.closed {
		return ErrInvalidArgument
	}
	s.closed = true
	s.nodes = nil
	return nil
}
