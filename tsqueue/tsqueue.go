// Package tsqueue provides a mutex guarded FIFO queue, with both a
// thread-safe interface, and a "locked" interface for callers that hold the
// lock themselves, e.g. to wait on a [sync.Cond] that shares it.
package tsqueue

import (
	"sync"

	"github.com/joeycumines/go-jobsystem/internal/chunkq"
)

// Queue is an unbounded FIFO queue. The zero value is ready to use.
// A Queue must not be copied after first use.
type Queue[T any] struct {
	queue chunkq.Queue[T]
	mu    sync.Mutex
}

var (
	swapMu sync.Mutex

	_ sync.Locker = (*Queue[any])(nil)
)

// Lock acquires the queue's lock, for use with the *Locked methods.
func (x *Queue[T]) Lock() { x.mu.Lock() }

// Unlock releases the queue's lock.
func (x *Queue[T]) Unlock() { x.mu.Unlock() }

// Push adds value to the back of the queue.
func (x *Queue[T]) Push(value T) {
	x.mu.Lock()
	x.queue.Push(value)
	x.mu.Unlock()
}

// Pop removes the front value, returning false if the queue was empty.
func (x *Queue[T]) Pop() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.queue.Pop()
}

// Front returns the front value without removing it.
func (x *Queue[T]) Front() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.queue.Front()
}

// Len returns the number of queued values.
func (x *Queue[T]) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.queue.Len()
}

// Empty reports whether the queue is empty.
func (x *Queue[T]) Empty() bool {
	return x.Len() == 0
}

// Clear discards all queued values.
func (x *Queue[T]) Clear() {
	x.mu.Lock()
	x.queue.Clear()
	x.mu.Unlock()
}

// TransferTo moves every value onto the back of dst, preserving order.
// Transferring a queue to itself is a no-op.
func (x *Queue[T]) TransferTo(dst *Queue[T]) {
	if x == dst {
		return
	}
	// the values are buffered so only one lock is held at a time
	x.mu.Lock()
	values := make([]T, 0, x.queue.Len())
	for {
		v, ok := x.queue.Pop()
		if !ok {
			break
		}
		values = append(values, v)
	}
	x.mu.Unlock()

	dst.mu.Lock()
	for _, v := range values {
		dst.queue.Push(v)
	}
	dst.mu.Unlock()
}

// Swap exchanges the contents of the two queues.
func (x *Queue[T]) Swap(other *Queue[T]) {
	if x == other {
		return
	}
	// serializes swaps, which are the only operation holding two locks
	swapMu.Lock()
	defer swapMu.Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()
	x.queue.Swap(&other.queue)
}

// PushLocked is Push, for a caller holding the lock.
func (x *Queue[T]) PushLocked(value T) { x.queue.Push(value) }

// PopLocked is Pop, for a caller holding the lock.
func (x *Queue[T]) PopLocked() (T, bool) { return x.queue.Pop() }

// FrontLocked is Front, for a caller holding the lock.
func (x *Queue[T]) FrontLocked() (T, bool) { return x.queue.Front() }

// LenLocked is Len, for a caller holding the lock.
func (x *Queue[T]) LenLocked() int { return x.queue.Len() }

// EmptyLocked is Empty, for a caller holding the lock.
func (x *Queue[T]) EmptyLocked() bool { return x.queue.Len() == 0 }
