package chunkq

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func drain[T any](q *Queue[T]) (values []T) {
	for {
		v, ok := q.Pop()
		if !ok {
			return values
		}
		values = append(values, v)
	}
}

func TestQueue_zeroValue(t *testing.T) {
	var q Queue[int]
	require.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	require.False(t, ok)
	_, ok = q.Front()
	require.False(t, ok)
	q.Clear()
	require.Equal(t, 0, q.Len())
}

func TestQueue_fifoAcrossChunks(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		n    int
	}{
		{`one`, 1},
		{`partial chunk`, chunkSize - 1},
		{`exact chunk`, chunkSize},
		{`chunk plus one`, chunkSize + 1},
		{`many chunks`, chunkSize*5 + 17},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var q Queue[int]
			var expected []int
			for i := range tc.n {
				q.Push(i)
				expected = append(expected, i)
			}
			require.Equal(t, tc.n, q.Len())
			front, ok := q.Front()
			require.True(t, ok)
			require.Equal(t, 0, front)
			if diff := cmp.Diff(expected, drain(&q)); diff != `` {
				t.Fatalf("unexpected values (-want +got):\n%s", diff)
			}
			require.Equal(t, 0, q.Len())
		})
	}
}

func TestQueue_interleaved(t *testing.T) {
	var q Queue[int]
	var expected, actual []int
	next := 0
	for round := range 50 {
		for range round % 7 * 40 {
			q.Push(next)
			expected = append(expected, next)
			next++
		}
		for range round % 5 * 30 {
			if v, ok := q.Pop(); ok {
				actual = append(actual, v)
			}
		}
		if v, ok := q.Front(); ok {
			require.Equal(t, expected[len(actual)], v)
		}
	}
	actual = append(actual, drain(&q)...)
	if diff := cmp.Diff(expected, actual); diff != `` {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestQueue_clear(t *testing.T) {
	var q Queue[*int]
	for i := range chunkSize * 3 {
		q.Push(&i)
	}
	q.Clear()
	require.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	require.False(t, ok)
	v := 5
	q.Push(&v)
	got, ok := q.Pop()
	require.True(t, ok)
	require.Same(t, &v, got)
}

func TestQueue_swap(t *testing.T) {
	var a, b Queue[int]
	for i := range chunkSize + 3 {
		a.Push(i)
	}
	b.Push(-1)
	a.Swap(&b)
	require.Equal(t, 1, a.Len())
	require.Equal(t, chunkSize+3, b.Len())
	v, ok := a.Pop()
	require.True(t, ok)
	require.Equal(t, -1, v)
	v, ok = b.Pop()
	require.True(t, ok)
	require.Equal(t, 0, v)
}
