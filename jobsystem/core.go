package jobsystem

import (
	"math"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-jobsystem/freelist"
	"github.com/joeycumines/logiface"
)

type (
	// JobSystem schedules jobs, and provides the barriers used to wait for
	// them. It is implemented by [ThreadPool] and [WorkerThread].
	JobSystem interface {
		// MaxConcurrency returns the maximum number of jobs that may execute
		// at once, including a goroutine waiting on a barrier.
		MaxConcurrency() int

		// CreateJob creates a job, that will run fn once its dependency count
		// reaches zero. A job with no dependencies is queued immediately.
		// Stalls if every job is in use.
		//
		// The name is used in logs, and in the errors of failed jobs.
		CreateJob(name string, fn func(), numDependencies uint32) JobHandle

		// CreateBarrier returns an unused barrier. Stalls if every barrier is
		// in use.
		CreateBarrier() *Barrier

		// DestroyBarrier returns an empty barrier to the pool. Panics if the
		// barrier still holds jobs.
		DestroyBarrier(barrier *Barrier)

		// WaitForJobs blocks until every job in the barrier has finished,
		// executing ready jobs from the barrier, while it waits. A barrier
		// supports only one waiter at a time, a second concurrent waiter
		// panics with ErrConcurrentWait.
		WaitForJobs(barrier *Barrier)

		// Metrics returns a snapshot of the metrics of the job system.
		Metrics() Metrics

		// Close stops the workers, executing any jobs still queued, before
		// returning. Jobs must not be queued after Close.
		Close() error
	}

	// scheduler places ready jobs where workers will find them.
	scheduler interface {
		queueJob(j *job)
		queueJobs(jobs []*job)
	}

	// core implements the parts of JobSystem that every scheduler shares.
	core struct {
		sched        scheduler
		jobs         *freelist.List[job]
		logger       *logiface.Logger[logiface.Event]
		stallLimiter *catrate.Limiter
		name         string
		barriers     []Barrier
		metrics      metrics
	}
)

func newCore(maxJobs, maxBarriers uint32, cfg *options, sched scheduler) (*core, error) {
	switch {
	case maxJobs == 0:
		return nil, invalidConfig(`max jobs must be positive`)
	case maxJobs == math.MaxUint32:
		return nil, invalidConfig(`max jobs %d too large`, maxJobs)
	case maxBarriers == 0:
		return nil, invalidConfig(`max barriers must be positive`)
	}

	c := &core{
		sched:        sched,
		jobs:         freelist.New[job](maxJobs),
		logger:       cfg.logger,
		stallLimiter: newStallLimiter(),
		name:         cfg.name,
		barriers:     make([]Barrier, maxBarriers),
	}
	c.metrics.init(cfg.metricsEnabled)
	for i := range c.barriers {
		c.barriers[i].init(c, cfg.barrierCapacity)
	}

	return c, nil
}

func (c *core) createJob(name string, fn func(), numDependencies uint32) JobHandle {
	var (
		index uint32
		j     *job
		ok    bool
	)
	for attempt := 0; ; attempt++ {
		if index, j, ok = c.jobs.Construct(); ok {
			break
		}
		c.stall(stallJobPool, attempt)
	}

	j.init(c, index, name, fn, numDependencies)
	c.metrics.jobsCreated.Add(1)

	handle := JobHandle{job: j}
	if numDependencies == 0 {
		j.markReady()
		c.queueJob(j)
	}
	return handle
}

// freeJob returns a job, with no remaining references, to the pool.
func (c *core) freeJob(j *job) {
	j.fn = nil
	j.err = nil
	c.jobs.Destruct(j.index)
}

func (c *core) queueJob(j *job) {
	c.sched.queueJob(j)
}

func (c *core) queueJobs(jobs []*job) {
	switch len(jobs) {
	case 0:
	case 1:
		c.sched.queueJob(jobs[0])
	default:
		c.sched.queueJobs(jobs)
	}
}

func (c *core) createBarrier() *Barrier {
	for attempt := 0; ; attempt++ {
		for i := range c.barriers {
			if c.barriers[i].inUse.CompareAndSwap(false, true) {
				return &c.barriers[i]
			}
		}
		c.stall(stallBarrierPool, attempt)
	}
}

func (c *core) destroyBarrier(barrier *Barrier) {
	if barrier.core != c {
		panic(ErrBarrierNotInUse)
	}
	if !barrier.IsEmpty() {
		panic(ErrBarrierNotEmpty)
	}
	barrier.reset()
	if !barrier.inUse.CompareAndSwap(true, false) {
		panic(ErrBarrierNotInUse)
	}
}

func (c *core) waitForJobs(barrier *Barrier) {
	if barrier.core != c {
		panic(ErrBarrierNotInUse)
	}
	barrier.wait()
}

// numJobs returns the number of jobs in use, i.e. referenced by a handle,
// barrier, queue, or dependency.
func (c *core) numJobs() int {
	return c.jobs.Count()
}
