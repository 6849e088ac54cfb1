package freelist

import (
	"sort"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestList_exhaustion(t *testing.T) {
	for _, tc := range [...]struct {
		name     string
		capacity uint32
	}{
		{`zero`, 0},
		{`one`, 1},
		{`many`, 100},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := New[int](tc.capacity)
			require.Equal(t, int(tc.capacity), l.Capacity())

			var indexes []int
			for i := range tc.capacity {
				index, obj, ok := l.Construct()
				require.True(t, ok)
				require.Equal(t, i, index)
				require.Same(t, l.Get(index), obj)
				indexes = append(indexes, int(index))
			}
			require.Equal(t, int(tc.capacity), l.Count())

			index, obj, ok := l.Construct()
			require.False(t, ok)
			require.Nil(t, obj)
			require.Equal(t, InvalidIndex, index)

			for _, index := range indexes {
				l.Destruct(uint32(index))
			}
			require.Equal(t, 0, l.Count())

			// every object can be reused
			var reused []int
			for range tc.capacity {
				index, _, ok := l.Construct()
				require.True(t, ok)
				reused = append(reused, int(index))
			}
			sort.Ints(reused)
			if diff := cmp.Diff(indexes, reused); diff != `` {
				t.Errorf("unexpected indexes (-want +got):\n%s", diff)
			}
			_, _, ok = l.Construct()
			require.False(t, ok)
		})
	}
}

func TestList_lifoReuse(t *testing.T) {
	l := New[string](4)
	a, _, _ := l.Construct()
	b, _, _ := l.Construct()
	l.Destruct(a)
	l.Destruct(b)
	index, _, ok := l.Construct()
	require.True(t, ok)
	require.Equal(t, b, index)
	index, _, ok = l.Construct()
	require.True(t, ok)
	require.Equal(t, a, index)
	// then the untouched objects
	index, _, ok = l.Construct()
	require.True(t, ok)
	require.Equal(t, uint32(2), index)
}

func TestList_objectsNotReset(t *testing.T) {
	l := New[int](1)
	index, obj, ok := l.Construct()
	require.True(t, ok)
	*obj = 42
	l.Destruct(index)
	_, obj, ok = l.Construct()
	require.True(t, ok)
	require.Equal(t, 42, *obj)
}

func TestList_batch(t *testing.T) {
	l := New[int](8)
	var batch Batch
	l.DestructBatch(&batch)
	require.Equal(t, 0, l.Count())

	for range 8 {
		index, _, ok := l.Construct()
		require.True(t, ok)
		if index%2 == 0 {
			l.AddToBatch(&batch, index)
		}
	}
	require.Equal(t, 4, batch.Len())
	require.Equal(t, 8, l.Count())

	l.DestructBatch(&batch)
	require.Equal(t, 0, batch.Len())
	require.Equal(t, 4, l.Count())

	var got []int
	for {
		index, _, ok := l.Construct()
		if !ok {
			break
		}
		got = append(got, int(index))
	}
	sort.Ints(got)
	if diff := cmp.Diff([]int{0, 2, 4, 6}, got); diff != `` {
		t.Errorf("unexpected indexes (-want +got):\n%s", diff)
	}
}

func TestList_concurrentExclusive(t *testing.T) {
	const (
		capacity   = 64
		workers    = 16
		iterations = 5000
	)
	type object struct {
		owner atomic.Int64
	}
	l := New[object](capacity)

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			held := make([]uint32, 0, 4)
			for i := range iterations {
				index, obj, ok := l.Construct()
				if ok {
					if !obj.owner.CompareAndSwap(0, int64(w+1)) {
						t.Errorf(`object %d owned by two workers`, index)
					}
					held = append(held, index)
				}
				if len(held) == cap(held) || (!ok && len(held) != 0) || i%3 == 0 {
					for _, index := range held {
						l.Get(index).owner.Store(0)
						l.Destruct(index)
					}
					held = held[:0]
				}
			}
			for _, index := range held {
				l.Get(index).owner.Store(0)
				l.Destruct(index)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 0, l.Count())

	// the free stack is intact
	seen := make(map[uint32]bool)
	for {
		index, _, ok := l.Construct()
		if !ok {
			break
		}
		require.False(t, seen[index])
		seen[index] = true
	}
	require.Len(t, seen, capacity)
}
