package workerthread

import (
	"github.com/joeycumines/logiface"
)

type options struct {
	logger       *logiface.Logger[logiface.Event]
	name         string
	lockOSThread bool
}

// Option configures [WorkerThread.Start].
type Option interface {
	apply(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger sets the logger used to report lifecycle problems, such as a
// panicking handler. A nil logger disables logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithName names the thread, in logs, and as the "thread" pprof label of the
// goroutine.
func WithName(name string) Option {
	return &optionImpl{func(opts *options) error {
		opts.name = name
		return nil
	}}
}

// WithLockOSThread wires the thread's goroutine to a single OS thread, for
// the lifetime of the thread.
func WithLockOSThread(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.lockOSThread = enabled
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		name: `worker`,
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
