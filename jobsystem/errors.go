package jobsystem

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by errors returned by the constructors and
	// options of this package, for invalid configuration.
	ErrInvalidConfig = errors.New(`jobsystem: invalid config`)

	// ErrClosed is returned by Close if the job system was already closed.
	// It is also the panic value, if jobs are queued after Close.
	ErrClosed = errors.New(`jobsystem: closed`)

	// ErrConcurrentWait is the panic value if more than one goroutine waits
	// on the same barrier at once.
	ErrConcurrentWait = errors.New(`jobsystem: barrier already has a waiter`)

	// ErrBarrierNotEmpty is the panic value if a barrier is destroyed while
	// it still holds jobs.
	ErrBarrierNotEmpty = errors.New(`jobsystem: barrier not empty`)

	// ErrBarrierNotInUse is the panic value if a barrier is destroyed twice,
	// or destroyed by a job system that did not create it.
	ErrBarrierNotInUse = errors.New(`jobsystem: barrier not in use`)

	// ErrDependencyUnderflow is the panic value if more dependencies are
	// removed from a job than it has.
	ErrDependencyUnderflow = errors.New(`jobsystem: dependency underflow`)

	// ErrJobStarted is the panic value if dependencies are added to a job
	// that is executing or done.
	ErrJobStarted = errors.New(`jobsystem: job already started`)

	// ErrJobInOtherBarrier is the panic value if a job is added to a
	// barrier, while it is in another barrier.
	ErrJobInOtherBarrier = errors.New(`jobsystem: job already added to another barrier`)

	// ErrBarrierUnfinished is the panic value if a wait ends with a job in
	// the barrier that has not finished, e.g. because it was added from
	// outside the barrier during the wait.
	ErrBarrierUnfinished = errors.New(`jobsystem: barrier released with unfinished job`)
)

// PanicError is the error of a job whose function panicked.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Job is the name of the job.
	Job string
	// Stack is the stack trace of the panicking goroutine.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf(`jobsystem: job %q panicked: %v`, e.Job, e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf(`%w: `+format, append([]any{ErrInvalidConfig}, args...)...)
}
