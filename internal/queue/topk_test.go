package queue

import (
	"testing"

	"github.com/hupe1980/motiondb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopK(t *testing.T) {
	q := NewTopK(3)
	for i, c := range []float64{0.9, 0.1, 0.5, 0.3, 0.7, 0.2} {
		q.Push(Item{Fragment: i, Cost: c})
	}
	require.True(t, q.Full())

	worst, ok := q.Worst()
	require.True(t, ok)
	assert.Equal(t, 0.3, worst.Cost)

	got := q.Sorted()
	assert.Equal(t, []Item{{1, 0.1}, {5, 0.2}, {3, 0.3}}, got)
	assert.Zero(t, q.Len())
}

func TestTopK_TiesAreDeterministic(t *testing.T) {
	q := NewTopK(2)
	assert.True(t, q.Push(Item{Fragment: 7, Cost: 1}))
	assert.True(t, q.Push(Item{Fragment: 3, Cost: 1}))
	assert.True(t, q.Push(Item{Fragment: 1, Cost: 1}))
	assert.False(t, q.Push(Item{Fragment: 9, Cost: 1}))

	assert.Equal(t, []Item{{1, 1}, {3, 1}}, q.Sorted())
}

func TestTopK_MatchesSort(t *testing.T) {
	rng := testutil.NewRNG(4)
	const n, k = 500, 17

	q := NewTopK(k)
	best := NewTopK(n)
	for i := 0; i < n; i++ {
		it := Item{Fragment: i, Cost: rng.Float64()}
		q.Push(it)
		best.Push(it)
	}

	all := best.Sorted()
	assert.Equal(t, all[:k], q.Sorted())
}

func TestTopK_Empty(t *testing.T) {
	q := NewTopK(0)
	_, ok := q.Worst()
	assert.False(t, ok)
	assert.Empty(t, q.Sorted())

	q.Push(Item{Fragment: 1, Cost: 2})
	q.Reset()
	assert.Zero(t, q.Len())
}
