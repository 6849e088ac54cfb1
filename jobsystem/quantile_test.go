package jobsystem

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuantile_uniform(t *testing.T) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = float64(i + 1)
	}
	rand.New(rand.NewPCG(1, 2)).Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	for _, tc := range [...]struct {
		p        float64
		expected float64
	}{
		{0.50, 5000},
		{0.90, 9000},
		{0.99, 9900},
	} {
		q := newQuantile(tc.p)
		for _, v := range values {
			q.observe(v)
		}
		require.InDelta(t, tc.expected, q.value(), 10000*0.02, `p=%v`, tc.p)
	}
}

func TestQuantile_fewObservations(t *testing.T) {
	q := newQuantile(0.5)
	require.Zero(t, q.value())
	q.observe(3)
	require.Equal(t, 3.0, q.value())
	q.observe(1)
	q.observe(2)
	require.Equal(t, 2.0, q.value())

	// clamped
	require.Equal(t, 1.0, newQuantile(7).p)
	require.Equal(t, 0.0, newQuantile(-1).p)
}

func TestLatencyRecorder_snapshot(t *testing.T) {
	var m metrics
	m.init(true)
	require.Equal(t, LatencyMetrics{}, m.latency.snapshot())
	for i := 1; i <= 100; i++ {
		m.latency.record(time.Duration(i) * time.Millisecond)
	}
	s := m.latency.snapshot()
	require.Equal(t, uint64(100), s.Count)
	require.Equal(t, 100*time.Millisecond, s.Max)
	require.Equal(t, 5050*time.Millisecond, s.Sum)
	require.Equal(t, 50500*time.Microsecond, s.Mean)
	require.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(5*time.Millisecond))
}
