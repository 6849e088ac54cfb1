package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-jobsystem/jobsystem"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

// Result summarizes a benchmark run.
type Result struct {
	Metrics jobsystem.Metrics
	Elapsed time.Duration
	Rounds  int
	Jobs    int
}

// JobsPerSecond is the rate at which jobs were executed.
func (x Result) JobsPerSecond() float64 {
	if x.Elapsed <= 0 {
		return 0
	}
	return float64(x.Jobs) / x.Elapsed.Seconds()
}

func newSystem(cfg Config, logger *logiface.Logger[logiface.Event]) (jobsystem.JobSystem, error) {
	opts := []jobsystem.Option{
		jobsystem.WithLogger(logger),
		jobsystem.WithName(cfg.System),
		jobsystem.WithQueueLength(uint32(cfg.QueueLength)),
		jobsystem.WithBarrierCapacity(cfg.barrierCapacity()),
		jobsystem.WithLockOSThread(cfg.LockOSThread),
		jobsystem.WithMetrics(true),
	}
	if cfg.System == systemWorkerThread {
		system, err := jobsystem.NewWorkerThread(uint32(cfg.MaxJobs), uint32(cfg.MaxBarriers), opts...)
		if err != nil {
			return nil, err
		}
		return system, nil
	}
	system, err := jobsystem.NewThreadPool(uint32(cfg.MaxJobs), uint32(cfg.MaxBarriers), cfg.Threads, opts...)
	if err != nil {
		return nil, err
	}
	return system, nil
}

// Run drives system with cfg.Producers goroutines, each waiting on its own
// barrier. Every round is a fan in of cfg.Jobs leaf jobs, into one final job.
func Run(ctx context.Context, cfg Config, system jobsystem.JobSystem, logger *logiface.Logger[logiface.Event]) (Result, error) {
	var rounds atomic.Int64

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for producer := 0; producer < cfg.Producers; producer++ {
		g.Go(func() error {
			barrier := system.CreateBarrier()
			defer system.DestroyBarrier(barrier)
			for round := 0; round < cfg.Rounds; round++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := runRound(cfg, system, barrier); err != nil {
					return fmt.Errorf(`jobbench: producer %d round %d: %w`, producer, round, err)
				}
				rounds.Add(1)
			}
			logger.Debug().
				Int(`producer`, producer).
				Log(`producer finished`)
			return nil
		})
	}
	err := g.Wait()

	n := int(rounds.Load())
	return Result{
		Metrics: system.Metrics(),
		Elapsed: time.Since(start),
		Rounds:  n,
		Jobs:    n * (cfg.Jobs + 1),
	}, err
}

func runRound(cfg Config, system jobsystem.JobSystem, barrier *jobsystem.Barrier) error {
	var (
		sum    atomic.Uint64
		result uint64
	)

	final := system.CreateJob(`fan-in`, func() { result = sum.Load() }, uint32(cfg.Jobs))
	defer final.Release()

	leaves := make([]jobsystem.JobHandle, cfg.Jobs)
	defer releaseHandles(leaves)
	for i := range leaves {
		value := uint64(i + 1)
		leaves[i] = system.CreateJob(`leaf`, func() {
			spin(cfg.Work)
			sum.Add(value)
		}, 1)
		// the leaves cannot start before their dependency is removed
		leaves[i].Precede(final)
	}

	barrier.AddJob(final)
	barrier.AddJobs(leaves...)
	jobsystem.RemoveDependencies(leaves, 1)
	system.WaitForJobs(barrier)

	if err := barrier.Err(); err != nil {
		return err
	}
	if want := uint64(cfg.Jobs) * uint64(cfg.Jobs+1) / 2; result != want {
		return fmt.Errorf(`fan-in observed sum %d, expected %d`, result, want)
	}
	return nil
}

func releaseHandles(handles []jobsystem.JobHandle) {
	for i := range handles {
		handles[i].Release()
	}
}

// spin busy waits, to simulate work without yielding the thread.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
	}
}
