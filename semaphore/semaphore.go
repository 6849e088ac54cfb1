package semaphore

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore, starting at zero.
//
// A negative count is the number of units that blocked acquirers are owed.
// Must be created with [New].
type Semaphore struct {
	native *semaphore.Weighted
	count  atomic.Int64
}

// New returns a semaphore with a count of zero.
func New() *Semaphore {
	native := semaphore.NewWeighted(math.MaxInt64)
	// all capacity is held by the semaphore itself, waiters block until
	// Release hands units back
	if !native.TryAcquire(math.MaxInt64) {
		panic(`semaphore: failed to initialize native semaphore`)
	}
	return &Semaphore{native: native}
}

// Acquire decrements the count by n, blocking until enough units have been
// released. Values of n <= 0 are ignored.
func (x *Semaphore) Acquire(n int) {
	if n <= 0 {
		return
	}
	count := int64(n)
	newValue := x.count.Add(-count)
	oldValue := newValue + count
	if newValue < 0 {
		// only wait for the part of the deficit that we introduced
		_ = x.native.Acquire(context.Background(), min(oldValue, 0)-newValue)
	}
}

// Release increments the count by n, waking blocked acquirers. Values of
// n <= 0 are ignored.
func (x *Semaphore) Release(n int) {
	if n <= 0 {
		return
	}
	count := int64(n)
	oldValue := x.count.Add(count) - count
	if oldValue < 0 {
		x.native.Release(min(oldValue+count, 0) - oldValue)
	}
}

// Value returns a snapshot of the count. It is inherently racy, and is only
// useful to a single acquirer, e.g. to batch several acquires into one.
func (x *Semaphore) Value() int {
	return int(x.count.Load())
}
