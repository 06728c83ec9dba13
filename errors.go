// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrInvalidArgument indicates a construction or operation argument was
// invalid, e.g. a non-positive capacity. It is a genuine failure, not a
// control flow signal: callers should not retry without changing the
// argument.
var ErrInvalidArgument = errors.New("lfq: invalid argument")

// ErrOutOfMemory indicates an allocation-bound operation (Stack.Push,
// Deque.PushFront/PushBack, Pool.Alloc) could not obtain a node because the
// container's bound is currently exhausted. Queue.Enqueue never returns it.
//
// ErrOutOfMemory wraps [iox.ErrWouldBlock] for ecosystem consistency: it is
// a control flow signal, not a failure, and unwraps to the same sentinel
// callers already check for backpressure in other hybscloud packages.
var ErrOutOfMemory = fmt.Errorf("lfq: out of memory: %w", iox.ErrWouldBlock)

// ErrEmpty indicates a Pop/Dequeue found no element to remove.
//
// ErrEmpty wraps [iox.ErrWouldBlock] for the same reason as [ErrOutOfMemory]:
// it is backpressure in the other direction, not a failure.
var ErrEmpty = fmt.Errorf("lfq: empty: %w", iox.ErrWouldBlock)

// IsInvalidArgument reports whether err is (or wraps) [ErrInvalidArgument].
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsOutOfMemory reports whether err is (or wraps) [ErrOutOfMemory].
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}

// IsEmpty reports whether err is (or wraps) [ErrEmpty].
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmpty)
}

// IsWouldBlock reports whether err indicates the operation would block,
// i.e. is either [ErrOutOfMemory] or [ErrEmpty]. Delegates to
// [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal rather than a
// failure. Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}
