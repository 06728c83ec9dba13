// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/lockfree"
)

func TestPoolBasic(t *testing.T) {
	p, err := lfq.NewPool[int](4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if p.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", p.Cap())
	}
	if p.Freeable() != 4 {
		t.Fatalf("Freeable: got %d, want 4", p.Freeable())
	}

	var idxs []int
	for i := 0; i < 4; i++ {
		idx, v, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc(%d): %v", i, err)
		}
		*v = i * 10
		idxs = append(idxs, idx)
	}

	if _, _, err := p.Alloc(); !errors.Is(err, lfq.ErrOutOfMemory) {
		t.Fatalf("Alloc on exhausted pool: got %v, want ErrOutOfMemory", err)
	}

	for i, idx := range idxs {
		if got := *p.At(idx); got != i*10 {
			t.Fatalf("At(%d): got %d, want %d", idx, got, i*10)
		}
	}

	for _, idx := range idxs {
		p.Free(idx)
	}
	if p.Freeable() != 4 {
		t.Fatalf("Freeable after round-trip: got %d, want 4", p.Freeable())
	}
}

func TestPoolNewInvalidArgument(t *testing.T) {
	if _, err := lfq.NewPool[int](0); !errors.Is(err, lfq.ErrInvalidArgument) {
		t.Fatalf("NewPool(0): got %v, want ErrInvalidArgument", err)
	}
	if _, err := lfq.NewPool[int](-1); !errors.Is(err, lfq.ErrInvalidArgument) {
		t.Fatalf("NewPool(-1): got %v, want ErrInvalidArgument", err)
	}
}

func TestPoolContains(t *testing.T) {
	p, err := lfq.NewPool[int](3)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	// All capacity+1 fragments are valid indices, including index 0 (the
	// initial dummy), correcting the source's off-by-one bound.
	for i := 0; i <= 3; i++ {
		if !p.Contains(i) {
			t.Fatalf("Contains(%d): want true", i)
		}
	}
	if p.Contains(4) {
		t.Fatalf("Contains(4): want false")
	}
	if p.Contains(-1) {
		t.Fatalf("Contains(-1): want false")
	}
}

func TestPoolClear(t *testing.T) {
	p, err := lfq.NewPool[int](4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, _, err := p.Alloc(); err != nil {
			t.Fatalf("Alloc: %v", err)
		}
	}
	if p.Freeable() != 0 {
		t.Fatalf("Freeable before Clear: got %d, want 0", p.Freeable())
	}
	p.Clear()
	if p.Freeable() != 4 {
		t.Fatalf("Freeable after Clear: got %d, want 4", p.Freeable())
	}
}

// TestPoolConcurrentAllocFree exercises alloc/free under contention: freeable
// must never exceed capacity nor go negative (spec.md §8 memory-pool law).
func TestPoolConcurrentAllocFree(t *testing.T) {
	if testing.Short() {
		t.Skip("skip: stress test")
	}
	if lfq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	const (
		goroutines = 8
		rounds     = 2000
		capacity   = 32
	)

	p, err := lfq.NewPool[int](capacity)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				idx, _, err := p.Alloc()
				if err != nil {
					continue
				}
				p.Free(idx)
			}
		}()
	}
	wg.Wait()

	if f := p.Freeable(); f < 0 || f > capacity {
		t.Fatalf("Freeable out of range after stress: got %d, want in [0, %d]", f, capacity)
	}
}
