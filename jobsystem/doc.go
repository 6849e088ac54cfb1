// Package jobsystem implements a dependency-aware job system, for running
// many small units of work in parallel, e.g. the per-frame work of a game
// engine.
//
// Jobs are allocated from a fixed-size pool, and are reference counted, see
// [JobHandle]. A job runs exactly once, after its dependency count reaches
// zero. Jobs waiting on nothing are placed on a fixed-size lock-free queue,
// and picked up by the worker goroutines of a [ThreadPool], or by the single
// worker of a [WorkerThread].
//
// A [Barrier] collects jobs so that a caller can wait for them. While
// waiting, the caller executes any collected job that is ready, rather than
// sleeping, see [JobSystem.WaitForJobs].
//
// Running out of a fixed resource (jobs, barriers, queue slots, or barrier
// slots) is not an error: the caller sleeps briefly and retries, reporting
// the stall through the configured logger, and [Metrics]. Builds with the
// jobsystemdebug tag panic instead.
package jobsystem
