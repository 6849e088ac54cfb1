package jobsystem

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-jobsystem/semaphore"
	"github.com/joeycumines/goroutineid"
	"golang.org/x/sys/cpu"
)

// Barrier collects jobs, so that a single goroutine can wait for them to
// finish, see [JobSystem.WaitForJobs]. Barriers are pooled by their job
// system, see [JobSystem.CreateBarrier].
//
// Jobs may be added from any goroutine before the wait starts. During the
// wait, only jobs that are themselves in the barrier may add more.
type Barrier struct {
	core      *core
	semaphore *semaphore.Semaphore
	// jobs is a ring buffer, indexed by readIndex and writeIndex
	jobs []atomic.Pointer[job]
	// errs are the errors of failed jobs
	errs []error
	mask uint64
	_    cpu.CacheLinePad
	// numToAcquire is the number of semaphore units the waiter still has to
	// acquire, one per added job, plus one per job that was ready when added
	numToAcquire atomic.Int64
	_            cpu.CacheLinePad
	// readIndex is only modified by the waiter
	readIndex atomic.Uint64
	_         cpu.CacheLinePad
	writeIndex atomic.Uint64
	_          cpu.CacheLinePad
	// waiter is the goroutine ID of the waiter, if any
	waiter atomic.Int64
	errsMu sync.Mutex
	inUse  atomic.Bool
}

func (x *Barrier) init(c *core, capacity uint32) {
	x.core = c
	x.semaphore = semaphore.New()
	x.jobs = make([]atomic.Pointer[job], capacity)
	x.mask = uint64(capacity) - 1
}

// AddJob adds a job to the barrier. Jobs that have already finished are
// ignored. Adding a job to a full barrier stalls, until the waiter removes
// finished jobs.
func (x *Barrier) AddJob(handle JobHandle) {
	j := handle.job
	if j == nil {
		return
	}

	var releaseSemaphore bool
	if j.setBarrier(x) {
		x.numToAcquire.Add(1)
		if j.canBeExecuted() {
			// wake the waiter, so it can help
			releaseSemaphore = true
			x.numToAcquire.Add(1)
		}
		x.store(j)
	}

	if releaseSemaphore {
		x.semaphore.Release(1)
	}
}

// AddJobs adds several jobs to the barrier, see [Barrier.AddJob]. The
// waiter is woken at most once.
func (x *Barrier) AddJobs(handles ...JobHandle) {
	var releaseSemaphore bool
	for _, handle := range handles {
		j := handle.job
		if j == nil || !j.setBarrier(x) {
			continue
		}
		x.numToAcquire.Add(1)
		if !releaseSemaphore && j.canBeExecuted() {
			releaseSemaphore = true
			x.numToAcquire.Add(1)
		}
		x.store(j)
	}

	if releaseSemaphore {
		x.semaphore.Release(1)
	}
}

// store appends j to the ring, taking a reference to it.
func (x *Barrier) store(j *job) {
	j.addRef()
	writeIndex := x.writeIndex.Add(1) - 1
	for attempt := 0; writeIndex-x.readIndex.Load() >= uint64(len(x.jobs)); attempt++ {
		x.core.stall(stallBarrier, attempt)
	}
	x.jobs[writeIndex&x.mask].Store(j)
}

// IsEmpty reports whether the barrier holds no jobs.
func (x *Barrier) IsEmpty() bool {
	return x.readIndex.Load() == x.writeIndex.Load()
}

// Err returns the errors of the jobs that failed, while in the barrier,
// since it was created, joined using [errors.Join].
func (x *Barrier) Err() error {
	x.errsMu.Lock()
	defer x.errsMu.Unlock()
	return errors.Join(x.errs...)
}

func (x *Barrier) onJobFinished(j *job) {
	if j.err != nil {
		x.errsMu.Lock()
		x.errs = append(x.errs, j.err)
		x.errsMu.Unlock()
	}
	x.semaphore.Release(1)
}

// wait blocks until every job in the barrier has finished, executing ready
// jobs on the calling goroutine rather than sleeping.
func (x *Barrier) wait() {
	if !x.waiter.CompareAndSwap(0, goroutineid.Get()) {
		panic(ErrConcurrentWait)
	}
	defer x.waiter.Store(0)

	for x.numToAcquire.Load() > 0 {
		for {
			x.removeFinished()
			if !x.executeOne() {
				break
			}
		}

		// the waiter is the only acquirer, so may take everything released
		// so far, in one go
		n := max(1, x.semaphore.Value())
		x.semaphore.Acquire(n)
		x.numToAcquire.Add(-int64(n))
	}

	// every job has finished, release the remainder
	writeIndex := x.writeIndex.Load()
	for readIndex := x.readIndex.Load(); readIndex < writeIndex; readIndex++ {
		slot := &x.jobs[readIndex&x.mask]
		j := slot.Load()
		if j == nil || !j.isDone() {
			panic(ErrBarrierUnfinished)
		}
		slot.Store(nil)
		j.release()
		x.readIndex.Store(readIndex + 1)
	}
}

// removeFinished drops the leading run of finished jobs.
func (x *Barrier) removeFinished() {
	for {
		readIndex := x.readIndex.Load()
		if readIndex >= x.writeIndex.Load() {
			return
		}
		slot := &x.jobs[readIndex&x.mask]
		j := slot.Load()
		if j == nil || !j.isDone() {
			return
		}
		slot.Store(nil)
		j.release()
		x.readIndex.Store(readIndex + 1)
	}
}

// executeOne runs the first ready job, returning false if there were none.
func (x *Barrier) executeOne() bool {
	writeIndex := x.writeIndex.Load()
	for index := x.readIndex.Load(); index < writeIndex; index++ {
		if j := x.jobs[index&x.mask].Load(); j != nil && j.canBeExecuted() {
			j.execute()
			return true
		}
	}
	return false
}

// reset prepares the barrier for reuse.
func (x *Barrier) reset() {
	x.errsMu.Lock()
	x.errs = nil
	x.errsMu.Unlock()
}
