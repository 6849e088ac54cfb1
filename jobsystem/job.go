package jobsystem

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// executingState is the dependency count of a running job.
	executingState uint32 = 0xe0e0e0e0

	// doneState is the dependency count of a finished job.
	doneState uint32 = 0xd0d0d0d0
)

// barrierDoneState is stored as the barrier of a finished job, so that it
// can no longer be added to a barrier.
var barrierDoneState = new(Barrier)

// job is a unit of work, owned by the free list of a core.
type job struct {
	// core owns the job
	core *core
	fn   func()
	// err is set before the job is marked done
	err  error
	name string
	// dependents lose a dependency when the job finishes, see precede
	dependents   []*job
	dependentsMu sync.Mutex
	// readyAt is the time the job became ready, in unix nanoseconds, only
	// set if latency metrics are enabled
	readyAt         atomic.Int64
	refCount        atomic.Uint32
	numDependencies atomic.Uint32
	barrier         atomic.Pointer[Barrier]
	index           uint32
	// sealed is set once dependents have been notified
	sealed bool
}

func (x *job) init(c *core, index uint32, name string, fn func(), numDependencies uint32) {
	x.core = c
	x.fn = fn
	x.err = nil
	x.name = name
	x.dependents = nil
	x.sealed = false
	x.index = index
	x.readyAt.Store(0)
	x.barrier.Store(nil)
	x.numDependencies.Store(numDependencies)
	// the reference of the handle returned by CreateJob
	x.refCount.Store(1)
}

func (x *job) addRef() {
	x.refCount.Add(1)
}

func (x *job) release() {
	if x.refCount.Add(^uint32(0)) == 0 {
		x.core.freeJob(x)
	}
}

// setBarrier associates the job with a barrier, returning false if the job
// has already finished.
func (x *job) setBarrier(b *Barrier) bool {
	if x.barrier.CompareAndSwap(nil, b) {
		return true
	}
	if x.barrier.Load() == barrierDoneState {
		return false
	}
	panic(ErrJobInOtherBarrier)
}

func (x *job) canBeExecuted() bool {
	return x.numDependencies.Load() == 0
}

func (x *job) isDone() bool {
	return x.numDependencies.Load() == doneState
}

// execute runs the job, if it is ready, and nobody else has started it.
func (x *job) execute() {
	if !x.numDependencies.CompareAndSwap(0, executingState) {
		return
	}

	c := x.core
	c.metrics.jobStarted(x)

	err := x.run()

	barrier := x.barrier.Swap(barrierDoneState)
	x.err = err
	x.numDependencies.Store(doneState)

	if err != nil {
		c.metrics.jobsFailed.Add(1)
		c.logger.Err().
			Str(`system`, c.name).
			Str(`job`, x.name).
			Err(err).
			Log(`job panicked`)
	}

	x.notifyDependents()

	if barrier != nil {
		barrier.onJobFinished(x)
	}
}

func (x *job) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Job: x.name, Stack: debug.Stack()}
		}
	}()
	if x.fn != nil {
		x.fn()
	}
	return nil
}

func (x *job) addDependency(count uint32) {
	old := x.numDependencies.Add(count) - count
	if old == executingState || old == doneState {
		panic(ErrJobStarted)
	}
}

// removeDependency returns true if the job became ready.
func (x *job) removeDependency(count uint32) bool {
	old := x.numDependencies.Add(-count) + count
	if old == executingState || old == doneState || old < count {
		panic(ErrDependencyUnderflow)
	}
	if old != count {
		return false
	}
	x.markReady()
	return true
}

func (x *job) removeDependencyAndQueue(count uint32) {
	if x.removeDependency(count) {
		x.core.queueJob(x)
	}
}

func (x *job) markReady() {
	if x.core.metrics.latencyEnabled {
		x.readyAt.Store(time.Now().UnixNano())
	}
}

// precede registers dependent to lose a dependency, once x finishes,
// returning false if x has already finished.
func (x *job) precede(dependent *job) bool {
	x.dependentsMu.Lock()
	defer x.dependentsMu.Unlock()
	if x.sealed || x.isDone() {
		return false
	}
	dependent.addRef()
	x.dependents = append(x.dependents, dependent)
	return true
}

func (x *job) notifyDependents() {
	x.dependentsMu.Lock()
	x.sealed = true
	dependents := x.dependents
	x.dependents = nil
	x.dependentsMu.Unlock()

	for _, dependent := range dependents {
		dependent.removeDependencyAndQueue(1)
		dependent.release()
	}
}
