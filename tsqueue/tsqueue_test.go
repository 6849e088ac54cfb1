package tsqueue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestQueue_basic(t *testing.T) {
	var q Queue[string]
	require.True(t, q.Empty())
	q.Push(`a`)
	q.Push(`b`)
	require.Equal(t, 2, q.Len())
	v, ok := q.Front()
	require.True(t, ok)
	require.Equal(t, `a`, v)
	v, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, `a`, v)
	q.Clear()
	require.True(t, q.Empty())
	_, ok = q.Pop()
	require.False(t, ok)
}

func TestQueue_lockedInterface(t *testing.T) {
	var q Queue[int]
	cond := sync.NewCond(&q)

	done := make(chan []int)
	go func() {
		var values []int
		q.Lock()
		defer q.Unlock()
		for len(values) < 3 {
			for q.EmptyLocked() {
				cond.Wait()
			}
			for {
				v, ok := q.PopLocked()
				if !ok {
					break
				}
				values = append(values, v)
			}
		}
		done <- values
	}()

	for i := range 3 {
		q.Lock()
		q.PushLocked(i)
		require.False(t, q.EmptyLocked())
		q.Unlock()
		cond.Signal()
	}

	if diff := cmp.Diff([]int{0, 1, 2}, <-done); diff != `` {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestQueue_concurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 500
	)
	var q Queue[int]
	var g errgroup.Group
	for p := range producers {
		g.Go(func() error {
			for i := range perWorker {
				q.Push(p*perWorker + i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, producers*perWorker, q.Len())

	// per-producer order is preserved
	last := make(map[int]int)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		p := v / perWorker
		if prev, ok := last[p]; ok {
			require.Greater(t, v, prev)
		}
		last[p] = v
	}
	require.Len(t, last, producers)
}

func TestQueue_transferTo(t *testing.T) {
	var src, dst Queue[int]
	dst.Push(0)
	for i := 1; i <= 300; i++ {
		src.Push(i)
	}
	src.TransferTo(&dst)
	src.TransferTo(&src)
	require.True(t, src.Empty())
	require.Equal(t, 301, dst.Len())
	for i := 0; i <= 300; i++ {
		v, ok := dst.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestQueue_swap(t *testing.T) {
	var a, b Queue[int]
	a.Push(1)
	a.Push(2)
	b.Push(3)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Swap(&b)
	}()
	go func() {
		defer wg.Done()
		b.Swap(&a)
	}()
	wg.Wait()

	// two swaps cancel out
	require.Equal(t, 2, a.Len())
	require.Equal(t, 1, b.Len())
	a.Swap(&a)
	v, _ := a.Front()
	require.Equal(t, 1, v)
}
