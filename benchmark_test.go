// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"testing"

	"code.hybscloud.com/lockfree"
	"github.com/gammazero/deque"
)

// =============================================================================
// Queue
// =============================================================================

func BenchmarkQueue_SingleOp(b *testing.B) {
	q := lfq.NewQueue[int]()

	b.ResetTimer()
	for i := range b.N {
		q.Enqueue(i)
		q.Dequeue()
	}
}

func BenchmarkQueue_MPMC(b *testing.B) {
	q := lfq.NewQueue[int]()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			q.Enqueue(1)
			q.Dequeue()
		}
	})
}

// =============================================================================
// Stack
// =============================================================================

func BenchmarkStack_SingleOp(b *testing.B) {
	s, _ := lfq.NewStack[int](1024)

	b.ResetTimer()
	for i := range b.N {
		s.Push(i)
		s.Pop()
	}
}

// =============================================================================
// Deque vs. github.com/gammazero/deque (single-goroutine baseline, not
// lock-free; included to give that dependency a concrete comparison home).
// =============================================================================

func BenchmarkDeque_SingleOp(b *testing.B) {
	d, _ := lfq.NewDeque[int](1024)

	b.ResetTimer()
	for i := range b.N {
		d.PushBack(i)
		d.PopFront()
	}
}

func BenchmarkDeque_FourCorner(b *testing.B) {
	d, _ := lfq.NewDeque[int](1024)

	b.ResetTimer()
	for i := range b.N {
		d.PushFront(i)
		d.PushBack(i)
		d.PopFront()
		d.PopBack()
	}
}

func BenchmarkGammazeroDeque_SingleOp(b *testing.B) {
	var d deque.Deque[int]

	b.ResetTimer()
	for i := range b.N {
		d.PushBack(i)
		d.PopFront()
	}
}

func BenchmarkGammazeroDeque_FourCorner(b *testing.B) {
	var d deque.Deque[int]

	b.ResetTimer()
	for i := range b.N {
		d.PushFront(i)
		d.PushBack(i)
		d.PopFront()
		d.PopBack()
	}
}
