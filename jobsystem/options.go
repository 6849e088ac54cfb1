package jobsystem

import (
	"github.com/joeycumines/logiface"
)

const (
	// DefaultQueueLength is the default number of slots in the job queue.
	DefaultQueueLength = 1024

	// DefaultBarrierCapacity is the default number of jobs a barrier can
	// hold, before AddJob stalls.
	DefaultBarrierCapacity = 2048
)

// options holds the configuration shared by every job system.
type options struct {
	logger          *logiface.Logger[logiface.Event]
	threadInit      func(threadIndex int)
	threadExit      func(threadIndex int)
	name            string
	queueLength     uint32
	barrierCapacity uint32
	lockOSThread    bool
	metricsEnabled  bool
}

// Option configures a job system, see [NewThreadPool] and
// [NewWorkerThread].
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger sets the logger, used to report stalls, and panicking jobs.
// A nil logger disables logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithName names the job system, in logs, and in the pprof labels of its
// worker goroutines.
func WithName(name string) Option {
	return &optionImpl{func(opts *options) error {
		opts.name = name
		return nil
	}}
}

// WithQueueLength sets the number of slots in the job queue, which must be a
// power of two. Queueing a job while every slot is in use stalls.
func WithQueueLength(length uint32) Option {
	return &optionImpl{func(opts *options) error {
		if !isPowerOfTwo(length) {
			return invalidConfig(`queue length %d is not a power of two`, length)
		}
		opts.queueLength = length
		return nil
	}}
}

// WithBarrierCapacity sets the number of jobs each barrier can hold, which
// must be a power of two.
func WithBarrierCapacity(capacity uint32) Option {
	return &optionImpl{func(opts *options) error {
		if !isPowerOfTwo(capacity) {
			return invalidConfig(`barrier capacity %d is not a power of two`, capacity)
		}
		opts.barrierCapacity = capacity
		return nil
	}}
}

// WithThreadInit sets a function that each worker goroutine calls, with its
// index, before it runs any job.
func WithThreadInit(fn func(threadIndex int)) Option {
	return &optionImpl{func(opts *options) error {
		opts.threadInit = fn
		return nil
	}}
}

// WithThreadExit sets a function that each worker goroutine calls, with its
// index, after it has run its last job.
func WithThreadExit(fn func(threadIndex int)) Option {
	return &optionImpl{func(opts *options) error {
		opts.threadExit = fn
		return nil
	}}
}

// WithLockOSThread wires each worker goroutine to its own OS thread.
func WithLockOSThread(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.lockOSThread = enabled
		return nil
	}}
}

// WithMetrics enables sampling of the latency between a job becoming ready,
// and it starting to execute, see [Metrics]. Counters are always collected.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		name:            `jobsystem`,
		queueLength:     DefaultQueueLength,
		barrierCapacity: DefaultBarrierCapacity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}
