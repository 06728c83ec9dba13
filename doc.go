// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfq provides lock-free concurrent container implementations:
// a Michael–Scott FIFO queue, a Sundell–Tsigas doubly-linked deque, a
// Treiber LIFO stack, and the bounded memory pool that backs the deque's
// nodes.
//
//   - [Queue]: unbounded multi-producer multi-consumer FIFO.
//   - [Deque]: bounded double-ended queue, push/pop at either end.
//   - [Stack]: bounded LIFO with an internal freelist.
//   - [Pool]: the bounded lock-free fragment allocator [Deque] is built
//     on; usable standalone as a fixed-size object pool.
//
// # Quick Start
//
//	q := lfq.NewQueue[Event]()
//	s, err := lfq.NewStack[*Request](4096)
//	d, err := lfq.NewDeque[Job](1024)
//
// # Basic Usage
//
// Every container is safe for concurrent use by any number of goroutines.
// Operations that cannot make progress return an error immediately rather
// than waiting. The one exception is [Queue]'s node arena: when it has no
// free slot, Enqueue grows it under a mutex, so concurrent growers wait
// on each other for that step.
//
//	q := lfq.NewQueue[int]()
//	if err := q.Enqueue(42); err != nil {
//	    // Enqueue on Queue never fails; the arena grows instead.
//	}
//	v, err := q.Dequeue()
//	if lfq.IsEmpty(err) {
//	    // nothing to dequeue yet
//	}
//
// [Stack] and [Deque] are bounded by the capacity given to their
// constructor and report [ErrOutOfMemory] once exhausted:
//
//	s, _ := lfq.NewStack[int](16)
//	if err := s.Push(1); lfq.IsOutOfMemory(err) {
//	    // stack is full
//	}
//	v, err := s.Pop()
//	if lfq.IsEmpty(err) {
//	    // stack is empty
//	}
//
// # Common Patterns
//
// Work queue (Queue):
//
//	q := lfq.NewQueue[Task]()
//
//	go func() { // producer
//	    for t := range incoming {
//	        q.Enqueue(t)
//	    }
//	}()
//
//	go func() { // consumer
//	    backoff := iox.Backoff{}
//	    for {
//	        t, err := q.Dequeue()
//	        if err != nil {
//	            backoff.Wait()
//	            continue
//	        }
//	        backoff.Reset()
//	        process(t)
//	    }
//	}()
//
// Work-stealing deque: a single owner pushes and pops from the front,
// while other goroutines steal from the back:
//
//	d, _ := lfq.NewDeque[Task](4096)
//
//	go func() { // owner
//	    for t := range incoming {
//	        for d.PushFront(t) != nil {
//	            runtime.Gosched()
//	        }
//	    }
//	}()
//	for t, err := d.PopFront(); err == nil; t, err = d.PopFront() {
//	    process(t)
//	}
//
//	go func() { // thief
//	    for {
//	        t, err := d.PopBack()
//	        if err != nil {
//	            continue
//	        }
//	        process(t)
//	    }
//	}()
//
// Bounded object reuse (Pool):
//
//	p, _ := lfq.NewPool[Buffer](256)
//	idx, buf, err := p.Alloc()
//	if lfq.IsOutOfMemory(err) {
//	    // all 256 buffers checked out
//	}
//	use(buf)
//	p.Free(idx)
//
// # Errors
//
// All containers share the error model in this package's root: invalid
// constructor arguments return [ErrInvalidArgument]; operations that
// would need more capacity than is available return [ErrOutOfMemory];
// pops/dequeues on an empty container return [ErrEmpty]. Both
// [ErrOutOfMemory] and [ErrEmpty] wrap iox's would-block sentinel, so
// generic retry/backoff code written against [IsWouldBlock] still works
// without distinguishing which container produced the error.
package lfq
