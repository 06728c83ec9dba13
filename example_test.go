// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains examples that use atomix concurrency primitives.
// These trigger false positives with Go's race detector because atomix
// atomic operations appear as regular memory accesses to the detector.
// The examples are correct; they're excluded from race testing.

package lfq_test

import (
	"fmt"

	"code.hybscloud.com/lockfree"
)

// ExampleNewQueue demonstrates a basic FIFO queue.
func ExampleNewQueue() {
	q := lfq.NewQueue[int]()

	for i := 1; i <= 5; i++ {
		q.Enqueue(i * 10)
	}

	for range 5 {
		v, _ := q.Dequeue()
		fmt.Println(v)
	}

	// Output:
	// 10
	// 20
	// 30
	// 40
	// 50
}

// ExampleNewStack demonstrates the bounded LIFO stack.
func ExampleNewStack() {
	s, _ := lfq.NewStack[string](4)

	s.Push("a")
	s.Push("b")
	s.Push("c")

	for range 3 {
		v, _ := s.Pop()
		fmt.Println(v)
	}

	// Output:
	// c
	// b
	// a
}

// ExampleNewDeque demonstrates pushing at both ends of the deque.
func ExampleNewDeque() {
	d, _ := lfq.NewDeque[int](8)

	d.PushBack(2)
	d.PushBack(3)
	d.PushFront(1)
	d.PushBack(4)

	for range 4 {
		v, _ := d.PopFront()
		fmt.Println(v)
	}

	// Output:
	// 1
	// 2
	// 3
	// 4
}

// ExampleNewPool demonstrates bounded object reuse without per-checkout
// allocation.
func ExampleNewPool() {
	p, _ := lfq.NewPool[[16]byte](4)

	idx, buf, _ := p.Alloc()
	buf[0] = 'h'
	buf[1] = 'i'
	fmt.Println(string(buf[:2]))
	p.Free(idx)

	fmt.Println(p.Freeable())
	// Output:
	// hi
	// 4
}
