package jobsystem

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/goroutineid"
)

// shutdown tracks pushes to a job queue, so that Close can drain every job
// pushed before it took effect, and refuse those pushed after.
type shutdown struct {
	// pushing counts the pushes in progress
	pushing atomic.Int64
	// drainer is the goroutine ID of Close, which may still push the
	// dependents of the jobs it drains
	drainer atomic.Int64
	closed  atomic.Bool
}

// enter must be called before a push, and paired with leave. Panics with
// ErrClosed if the queue is closed.
func (x *shutdown) enter() {
	x.pushing.Add(1)
	if x.closed.Load() && x.drainer.Load() != goroutineid.Get() {
		x.pushing.Add(-1)
		panic(ErrClosed)
	}
}

func (x *shutdown) leave() {
	x.pushing.Add(-1)
}

// close runs drain, then closes the queue, and keeps draining until pushes
// that raced with it are done.
func (x *shutdown) close(drain func()) {
	x.drainer.Store(goroutineid.Get())
	drain()
	x.closed.Store(true)
	// pushes that started before closed was set have incremented pushing
	for x.pushing.Load() != 0 {
		drain()
		runtime.Gosched()
	}
	drain()
}
