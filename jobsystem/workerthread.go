package jobsystem

import (
	"sync/atomic"

	"github.com/joeycumines/go-jobsystem/workerthread"
)

// instruction is sent to the goroutine of a WorkerThread.
type instruction uint8

const (
	// instructionInit runs the thread init function.
	instructionInit instruction = iota
	// instructionJobsAvailable runs every queued job.
	instructionJobsAvailable
	// instructionTerminate runs every queued job, then the thread exit
	// function, then stops the thread.
	instructionTerminate
)

// WorkerThread is a [JobSystem] that runs jobs on a single dedicated
// goroutine, e.g. to keep work off the caller's goroutine, when parallelism
// is not needed.
type WorkerThread struct {
	core   *core
	queue  *jobQueue
	cfg    *options
	thread workerthread.WorkerThread[instruction]
	// head is the queue position of the thread, and of Close
	head    queueHead
	shutdown shutdown
	closing  atomic.Bool
}

var _ JobSystem = (*WorkerThread)(nil)

// NewWorkerThread starts a job system with a single worker goroutine. It
// returns after the thread init function, if any, has run.
//
// Up to maxJobs jobs, and maxBarriers barriers, may be in use at once.
func NewWorkerThread(maxJobs, maxBarriers uint32, opts ...Option) (*WorkerThread, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &WorkerThread{
		queue: newJobQueue(cfg.queueLength),
		cfg:   cfg,
	}

	x.core, err = newCore(maxJobs, maxBarriers, cfg, x)
	if err != nil {
		return nil, err
	}

	if err := x.thread.Start(
		x.handle,
		workerthread.WithName(cfg.name),
		workerthread.WithLockOSThread(cfg.lockOSThread),
		workerthread.WithLogger(cfg.logger),
	); err != nil {
		return nil, err
	}

	x.thread.SendInstruction(instructionInit)
	x.thread.WaitUntilDone()

	return x, nil
}

func (x *WorkerThread) handle(in instruction) bool {
	switch in {
	case instructionInit:
		if x.cfg.threadInit != nil {
			x.cfg.threadInit(0)
		}
	case instructionJobsAvailable:
		x.queue.runFrom(&x.head.value)
	case instructionTerminate:
		x.queue.runFrom(&x.head.value)
		if x.cfg.threadExit != nil {
			x.cfg.threadExit(0)
		}
		return false
	}
	return true
}

func (x *WorkerThread) push(j *job) {
	x.shutdown.enter()
	defer x.shutdown.leave()
	x.queue.push(j, x.head.value.Load, func(attempt int) {
		x.thread.SendInstruction(instructionJobsAvailable)
		x.core.stall(stallQueue, attempt)
	})
}

func (x *WorkerThread) queueJob(j *job) {
	x.push(j)
	x.thread.SendInstruction(instructionJobsAvailable)
}

func (x *WorkerThread) queueJobs(jobs []*job) {
	for _, j := range jobs {
		x.push(j)
	}
	x.thread.SendInstruction(instructionJobsAvailable)
}

// MaxConcurrency returns 1.
func (x *WorkerThread) MaxConcurrency() int {
	return 1
}

// CreateJob implements [JobSystem.CreateJob].
func (x *WorkerThread) CreateJob(name string, fn func(), numDependencies uint32) JobHandle {
	return x.core.createJob(name, fn, numDependencies)
}

// CreateBarrier implements [JobSystem.CreateBarrier].
func (x *WorkerThread) CreateBarrier() *Barrier {
	return x.core.createBarrier()
}

// DestroyBarrier implements [JobSystem.DestroyBarrier].
func (x *WorkerThread) DestroyBarrier(barrier *Barrier) {
	x.core.destroyBarrier(barrier)
}

// WaitForJobs implements [JobSystem.WaitForJobs].
func (x *WorkerThread) WaitForJobs(barrier *Barrier) {
	x.core.waitForJobs(barrier)
}

// Metrics implements [JobSystem.Metrics].
func (x *WorkerThread) Metrics() Metrics {
	return x.core.metrics.snapshot()
}

// JobsInUse returns the number of jobs that have not been returned to the
// pool.
func (x *WorkerThread) JobsInUse() int {
	return x.core.numJobs()
}

// Close stops the thread, after it has executed every queued job, and run
// the thread exit function. It returns ErrClosed if called more than once.
func (x *WorkerThread) Close() error {
	if !x.closing.CompareAndSwap(false, true) {
		return ErrClosed
	}

	x.thread.SendInstruction(instructionTerminate)
	<-x.thread.Done()
	x.thread.Terminate()

	// anything queued after the terminate instruction was handled
	x.shutdown.close(func() { x.queue.runFrom(&x.head.value) })

	return nil
}
