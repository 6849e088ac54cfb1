package workerthread

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-jobsystem/tsqueue"
	"github.com/joeycumines/goroutineid"
)

// WorkerThread is a goroutine that dispatches instructions of type I to a
// handler. The zero value is ready to use, and may be started, terminated,
// and started again. A WorkerThread must not be copied after first use.
type WorkerThread[I any] struct {
	// queue is the mailbox, its lock also guards the fields below
	queue tsqueue.Queue[I]
	// wake is signalled when instructions arrive, or on termination
	wake sync.Cond
	// idleCond is broadcast whenever idle becomes true
	idleCond sync.Cond
	done     chan struct{}
	cfg      *options
	// goroutineID is the ID of the running thread, or zero
	goroutineID atomic.Int64
	initOnce    sync.Once
	running     bool
	terminating bool
	idle        bool
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (x *WorkerThread[I]) init() {
	x.initOnce.Do(func() {
		x.wake.L = &x.queue
		x.idleCond.L = &x.queue
	})
}

// Start launches the thread, which will call handler for every instruction,
// until it is terminated, or handler returns false. Instructions that were
// sent before Start are processed once the thread starts.
func (x *WorkerThread[I]) Start(handler func(instruction I) bool, opts ...Option) error {
	if handler == nil {
		return ErrNilHandler
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}

	x.init()

	x.queue.Lock()
	if x.running {
		x.queue.Unlock()
		cfg.logger.Warning().
			Str(`thread`, cfg.name).
			Log(`worker thread already running`)
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	x.running = true
	x.terminating = false
	x.idle = false
	x.done = done
	x.cfg = cfg
	x.queue.Unlock()

	go x.run(handler, cfg, done)

	return nil
}

func (x *WorkerThread[I]) run(handler func(I) bool, cfg *options, done chan struct{}) {
	if cfg.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	x.goroutineID.Store(goroutineid.Get())

	defer x.exit(done)

	pprof.Do(context.Background(), pprof.Labels(`thread`, cfg.name), func(context.Context) {
		x.loop(handler, cfg)
	})
}

func (x *WorkerThread[I]) loop(handler func(I) bool, cfg *options) {
	defer func() {
		if r := recover(); r != nil {
			cfg.logger.Err().
				Str(`thread`, cfg.name).
				Str(`panic`, fmt.Sprint(r)).
				Str(`stack`, string(debug.Stack())).
				Log(`worker thread handler panicked`)
		}
	}()

	for {
		x.queue.Lock()
		for x.queue.EmptyLocked() && !x.terminating {
			x.idle = true
			x.idleCond.Broadcast()
			x.wake.Wait()
		}
		if x.terminating {
			x.queue.Unlock()
			return
		}
		x.idle = false
		instruction, _ := x.queue.PopLocked()
		x.queue.Unlock()

		if !handler(instruction) {
			return
		}
	}
}

func (x *WorkerThread[I]) exit(done chan struct{}) {
	x.queue.Lock()
	x.running = false
	x.idle = true
	x.goroutineID.Store(0)
	x.idleCond.Broadcast()
	x.queue.Unlock()
	close(done)
}

// SendInstruction queues an instruction, and wakes the thread.
func (x *WorkerThread[I]) SendInstruction(instruction I) {
	x.init()
	x.queue.Lock()
	x.queue.PushLocked(instruction)
	x.idle = false
	x.queue.Unlock()
	x.wake.Signal()
}

// SendInstructionWithoutNotify queues an instruction without waking the
// thread, see [WorkerThread.NotifyOfInstruction].
func (x *WorkerThread[I]) SendInstructionWithoutNotify(instruction I) {
	x.queue.Push(instruction)
}

// NotifyOfInstruction wakes the thread, if there are queued instructions.
func (x *WorkerThread[I]) NotifyOfInstruction() {
	x.init()
	x.queue.Lock()
	if x.queue.EmptyLocked() {
		x.queue.Unlock()
		return
	}
	x.idle = false
	x.queue.Unlock()
	x.wake.Signal()
}

// WaitUntilDone blocks until the thread is idle, or not running. It must not
// be called from the thread itself.
func (x *WorkerThread[I]) WaitUntilDone() {
	x.init()
	x.queue.Lock()
	for x.running && !x.idle {
		x.idleCond.Wait()
	}
	x.queue.Unlock()
}

// Terminate stops the thread, and waits for it to exit, unless called from
// the thread itself. Instructions that have not been dispatched are left
// queued. It is a no-op if the thread is not running.
func (x *WorkerThread[I]) Terminate() {
	x.init()
	x.queue.Lock()
	if !x.running {
		x.queue.Unlock()
		return
	}
	x.terminating = true
	x.idle = true
	done := x.done
	x.idleCond.Broadcast()
	x.queue.Unlock()
	x.wake.Broadcast()

	if x.goroutineID.Load() == goroutineid.Get() {
		return
	}
	<-done
}

// IsTerminated reports whether the thread is not running, i.e. it was never
// started, was terminated, or its handler returned false.
func (x *WorkerThread[I]) IsTerminated() bool {
	x.queue.Lock()
	defer x.queue.Unlock()
	return !x.running
}

// Done returns a channel that is closed once the most recently started
// thread has exited. If the thread was never started, the channel is closed.
func (x *WorkerThread[I]) Done() <-chan struct{} {
	x.queue.Lock()
	defer x.queue.Unlock()
	if x.done == nil {
		return closedChan
	}
	return x.done
}

// Len returns the number of queued instructions.
func (x *WorkerThread[I]) Len() int {
	return x.queue.Len()
}
