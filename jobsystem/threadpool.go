package jobsystem

import (
	"context"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-jobsystem/semaphore"
)

// ThreadPool is a [JobSystem] that runs jobs on a fixed number of worker
// goroutines, which share a single job queue.
//
// A pool with zero threads never queues jobs: ready jobs only run when a
// goroutine waiting on a barrier containing them executes them.
type ThreadPool struct {
	core      *core
	queue     *jobQueue
	semaphore *semaphore.Semaphore
	cfg       *options
	// heads holds the queue position of each thread
	heads []queueHead
	// drainHead is the queue position used by Close
	drainHead  queueHead
	wg         sync.WaitGroup
	numThreads int
	quit       atomic.Bool
	draining   atomic.Bool
	shutdown   shutdown
	closing    atomic.Bool
}

var _ JobSystem = (*ThreadPool)(nil)

// NewThreadPool starts a pool with the given number of worker goroutines.
// A negative numThreads uses one less than GOMAXPROCS, leaving room for
// the goroutine that waits on barriers.
//
// Up to maxJobs jobs, and maxBarriers barriers, may be in use at once.
func NewThreadPool(maxJobs, maxBarriers uint32, numThreads int, opts ...Option) (*ThreadPool, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	if numThreads < 0 {
		numThreads = max(runtime.GOMAXPROCS(0)-1, 0)
	}

	x := &ThreadPool{
		queue:      newJobQueue(cfg.queueLength),
		semaphore:  semaphore.New(),
		cfg:        cfg,
		heads:      make([]queueHead, numThreads),
		numThreads: numThreads,
	}

	x.core, err = newCore(maxJobs, maxBarriers, cfg, x)
	if err != nil {
		return nil, err
	}

	x.wg.Add(numThreads)
	for i := range numThreads {
		go x.thread(i)
	}

	x.core.logger.Debug().
		Str(`system`, cfg.name).
		Int(`threads`, numThreads).
		Log(`thread pool started`)

	return x, nil
}

func (x *ThreadPool) thread(index int) {
	defer x.wg.Done()

	if x.cfg.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	labels := pprof.Labels(`jobsystem`, x.cfg.name, `thread`, strconv.Itoa(index))
	pprof.Do(context.Background(), labels, func(context.Context) {
		if x.cfg.threadInit != nil {
			x.cfg.threadInit(index)
		}

		head := &x.heads[index].value
		for !x.quit.Load() {
			x.semaphore.Acquire(1)
			x.queue.runFrom(head)
		}

		if x.cfg.threadExit != nil {
			x.cfg.threadExit(index)
		}
	})
}

// minHead returns the position of the slowest consumer.
func (x *ThreadPool) minHead() uint64 {
	if x.draining.Load() {
		return x.drainHead.value.Load()
	}
	head := x.queue.tail.Load()
	for i := range x.heads {
		head = min(head, x.heads[i].value.Load())
	}
	return head
}

func (x *ThreadPool) push(j *job) {
	x.shutdown.enter()
	defer x.shutdown.leave()
	x.queue.push(j, x.minHead, func(attempt int) {
		// make sure every thread is draining the queue
		x.semaphore.Release(x.numThreads)
		x.core.stall(stallQueue, attempt)
	})
}

func (x *ThreadPool) queueJob(j *job) {
	if x.numThreads == 0 {
		return
	}
	x.push(j)
	x.semaphore.Release(1)
}

func (x *ThreadPool) queueJobs(jobs []*job) {
	if x.numThreads == 0 {
		return
	}
	for _, j := range jobs {
		x.push(j)
	}
	x.semaphore.Release(min(len(jobs), x.numThreads))
}

// NumThreads returns the number of worker goroutines.
func (x *ThreadPool) NumThreads() int {
	return x.numThreads
}

// MaxConcurrency returns the number of threads, plus one for the goroutine
// waiting on a barrier.
func (x *ThreadPool) MaxConcurrency() int {
	return x.numThreads + 1
}

// CreateJob implements [JobSystem.CreateJob].
func (x *ThreadPool) CreateJob(name string, fn func(), numDependencies uint32) JobHandle {
	return x.core.createJob(name, fn, numDependencies)
}

// CreateBarrier implements [JobSystem.CreateBarrier].
func (x *ThreadPool) CreateBarrier() *Barrier {
	return x.core.createBarrier()
}

// DestroyBarrier implements [JobSystem.DestroyBarrier].
func (x *ThreadPool) DestroyBarrier(barrier *Barrier) {
	x.core.destroyBarrier(barrier)
}

// WaitForJobs implements [JobSystem.WaitForJobs].
func (x *ThreadPool) WaitForJobs(barrier *Barrier) {
	x.core.waitForJobs(barrier)
}

// Metrics implements [JobSystem.Metrics].
func (x *ThreadPool) Metrics() Metrics {
	return x.core.metrics.snapshot()
}

// JobsInUse returns the number of jobs that have not been returned to the
// pool.
func (x *ThreadPool) JobsInUse() int {
	return x.core.numJobs()
}

// Close stops every thread, then executes the jobs left in the queue, on
// the calling goroutine. It returns ErrClosed if called more than once.
func (x *ThreadPool) Close() error {
	if !x.closing.CompareAndSwap(false, true) {
		return ErrClosed
	}

	x.quit.Store(true)
	x.semaphore.Release(x.numThreads)
	x.wg.Wait()

	// jobs queued by the leftovers are picked up by the same loop
	x.drainHead.value.Store(x.minHead())
	x.draining.Store(true)
	x.shutdown.close(func() { x.queue.runFrom(&x.drainHead.value) })

	x.core.logger.Debug().
		Str(`system`, x.cfg.name).
		Log(`thread pool stopped`)

	return nil
}
