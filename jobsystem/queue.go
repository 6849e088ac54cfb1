package jobsystem

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type (
	// jobQueue is a fixed-size, lock-free, multi-producer queue of ready
	// jobs. Every consumer tracks its own head, and visits every slot,
	// claiming the jobs it finds. A slot may only be reused once every
	// consumer has moved past it.
	jobQueue struct {
		slots []atomic.Pointer[job]
		mask  uint64
		_     cpu.CacheLinePad
		tail  atomic.Uint64
		_     cpu.CacheLinePad
	}

	// queueHead is the position of a single consumer, on its own cache line.
	queueHead struct {
		_     cpu.CacheLinePad
		value atomic.Uint64
		_     cpu.CacheLinePad
	}
)

func newJobQueue(length uint32) *jobQueue {
	return &jobQueue{
		slots: make([]atomic.Pointer[job], length),
		mask:  uint64(length) - 1,
	}
}

// push adds j to the queue, which takes a reference to it. The minHead
// function must return the position of the slowest consumer. If the queue is
// full, full is called, and the push retried. Each retry increments attempt.
func (q *jobQueue) push(j *job, minHead func() uint64, full func(attempt int)) {
	j.addRef()

	size := int64(len(q.slots))
	head := minHead()
	for attempt := 0; ; {
		tail := q.tail.Load()
		if int64(tail-head) >= size {
			head = minHead()
			if int64(tail-head) >= size {
				full(attempt)
				attempt++
				continue
			}
		}

		success := q.slots[tail&q.mask].CompareAndSwap(nil, j)

		// advance the tail, even if another producer filled the slot, in
		// case it was descheduled before it could
		q.tail.CompareAndSwap(tail, tail+1)

		if success {
			return
		}
	}
}

// claim takes the job at position, if any consumer has not already.
func (q *jobQueue) claim(position uint64) *job {
	slot := &q.slots[position&q.mask]
	if slot.Load() == nil {
		return nil
	}
	return slot.Swap(nil)
}

// runFrom executes every job between head and the tail, advancing head.
func (q *jobQueue) runFrom(head *atomic.Uint64) {
	for {
		position := head.Load()
		if position == q.tail.Load() {
			return
		}
		if j := q.claim(position); j != nil {
			j.execute()
			j.release()
		}
		head.Store(position + 1)
	}
}
