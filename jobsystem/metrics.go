package jobsystem

import (
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Metrics is a snapshot of the counters of a job system.
	Metrics struct {
		// Stalls counts the times a caller had to wait for a fixed resource.
		Stalls StallMetrics
		// Latency describes the time between jobs becoming ready, and them
		// starting, only sampled if enabled using [WithMetrics].
		Latency LatencyMetrics
		// JobsCreated is the number of jobs created.
		JobsCreated uint64
		// JobsExecuted is the number of jobs that have started executing.
		JobsExecuted uint64
		// JobsFailed is the number of jobs that panicked.
		JobsFailed uint64
	}

	// StallMetrics counts stalls, by exhausted resource.
	StallMetrics struct {
		// JobPool counts CreateJob calls that found no free job.
		JobPool uint64
		// Queue counts jobs that found the job queue full.
		Queue uint64
		// Barrier counts AddJob calls that found the barrier full.
		Barrier uint64
		// BarrierPool counts CreateBarrier calls that found no free barrier.
		BarrierPool uint64
	}

	// LatencyMetrics summarizes sampled durations.
	LatencyMetrics struct {
		P50   time.Duration
		P90   time.Duration
		P99   time.Duration
		Max   time.Duration
		Mean  time.Duration
		Sum   time.Duration
		Count uint64
	}

	metrics struct {
		latency        latencyRecorder
		stalls         [numStallKinds]atomic.Uint64
		jobsCreated    atomic.Uint64
		jobsExecuted   atomic.Uint64
		jobsFailed     atomic.Uint64
		latencyEnabled bool
	}

	latencyRecorder struct {
		p50   *quantile
		p90   *quantile
		p99   *quantile
		max   time.Duration
		sum   time.Duration
		count uint64
		mu    sync.Mutex
	}
)

func (x *metrics) init(latencyEnabled bool) {
	x.latencyEnabled = latencyEnabled
	x.latency.p50 = newQuantile(0.50)
	x.latency.p90 = newQuantile(0.90)
	x.latency.p99 = newQuantile(0.99)
}

func (x *metrics) jobStarted(j *job) {
	x.jobsExecuted.Add(1)
	if !x.latencyEnabled {
		return
	}
	if readyAt := j.readyAt.Load(); readyAt != 0 {
		x.latency.record(time.Duration(time.Now().UnixNano() - readyAt))
	}
}

func (x *metrics) snapshot() Metrics {
	m := Metrics{
		JobsCreated:  x.jobsCreated.Load(),
		JobsExecuted: x.jobsExecuted.Load(),
		JobsFailed:   x.jobsFailed.Load(),
		Stalls: StallMetrics{
			JobPool:     x.stalls[stallJobPool].Load(),
			Queue:       x.stalls[stallQueue].Load(),
			Barrier:     x.stalls[stallBarrier].Load(),
			BarrierPool: x.stalls[stallBarrierPool].Load(),
		},
	}
	if x.latencyEnabled {
		m.Latency = x.latency.snapshot()
	}
	return m
}

func (x *latencyRecorder) record(d time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.count++
	x.sum += d
	x.max = max(x.max, d)
	v := float64(d)
	x.p50.observe(v)
	x.p90.observe(v)
	x.p99.observe(v)
}

func (x *latencyRecorder) snapshot() (m LatencyMetrics) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.count == 0 {
		return m
	}
	m.Count = x.count
	m.Sum = x.sum
	m.Max = x.max
	m.Mean = x.sum / time.Duration(x.count)
	m.P50 = time.Duration(x.p50.value())
	m.P90 = time.Duration(x.p90.value())
	m.P99 = time.Duration(x.p99.value())
	return m
}
