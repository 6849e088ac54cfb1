package jobsystem

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// systemFactories constructs each JobSystem implementation, closing it once
// the test completes.
var systemFactories = [...]struct {
	name string
	new  func(t *testing.T, maxJobs, maxBarriers uint32, opts ...Option) JobSystem
}{
	{
		name: `thread pool`,
		new: func(t *testing.T, maxJobs, maxBarriers uint32, opts ...Option) JobSystem {
			t.Helper()
			x, err := NewThreadPool(maxJobs, maxBarriers, 4, opts...)
			require.NoError(t, err)
			t.Cleanup(func() { _ = x.Close() })
			return x
		},
	},
	{
		name: `worker thread`,
		new: func(t *testing.T, maxJobs, maxBarriers uint32, opts ...Option) JobSystem {
			t.Helper()
			x, err := NewWorkerThread(maxJobs, maxBarriers, opts...)
			require.NoError(t, err)
			t.Cleanup(func() { _ = x.Close() })
			return x
		},
	},
}

func newThreadPool(t *testing.T, maxJobs, maxBarriers uint32, numThreads int, opts ...Option) *ThreadPool {
	t.Helper()
	x, err := NewThreadPool(maxJobs, maxBarriers, numThreads, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func waitChan[T any](t *testing.T, ch <-chan T) (v T) {
	t.Helper()
	select {
	case v = <-ch:
	case <-time.After(time.Second * 10):
		t.Fatal(`timed out`)
	}
	return v
}

// recorder collects values from concurrent jobs.
type recorder[T any] struct {
	values []T
	mu     sync.Mutex
}

func (x *recorder[T]) add(v T) {
	x.mu.Lock()
	x.values = append(x.values, v)
	x.mu.Unlock()
}

func (x *recorder[T]) get() []T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]T(nil), x.values...)
}

func releaseAll(handles []JobHandle) {
	for i := range handles {
		handles[i].Release()
	}
}
