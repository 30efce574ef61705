package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n, limit int
	released int
}

func (c *counter) Step(context.Context) (Status, error) {
	c.n++
	if c.n >= c.limit {
		return Done, nil
	}
	return Continue, nil
}

func (c *counter) Progress() float64 { return float64(c.n) / float64(c.limit) }

func (c *counter) Release() { c.released++ }

func TestRun(t *testing.T) {
	c := &counter{limit: 5}
	require.NoError(t, Run(context.Background(), c))
	assert.Equal(t, 5, c.n)
	assert.Equal(t, 1, c.released)
}

func TestRun_Error(t *testing.T) {
	boom := errors.New("boom")
	released := false
	s := Func(func(context.Context) (Status, error) { return Continue, boom }, func() { released = true })

	assert.ErrorIs(t, Run(context.Background(), s), boom)
	assert.True(t, released)
}

func TestRun_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	released := 0
	s := Func(func(context.Context) (Status, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return Continue, nil
	}, func() { released++ })

	assert.ErrorIs(t, Run(ctx, s), context.Canceled)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, released)

	s.Release()
	assert.Equal(t, 1, released)
}

func TestSequence(t *testing.T) {
	a := &counter{limit: 2}
	b := &counter{limit: 4}
	ran := false
	seq := NewSequence(a, Once(func(context.Context) error { ran = true; return nil }, nil), b)

	st, err := seq.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, st)
	assert.InDelta(t, 0.5/3, seq.Progress(), 1e-12)

	require.NoError(t, Run(context.Background(), seq))
	assert.True(t, ran)
	assert.Equal(t, 3, seq.Current())
	assert.Equal(t, 1.0, seq.Progress())
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, b.released)
}

func TestSequence_ReleaseOnCancel(t *testing.T) {
	a := &counter{limit: 1}
	b := &counter{limit: 100}
	c := &counter{limit: 1}
	seq := NewSequence(a, b, c)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := seq.Step(ctx)
	require.NoError(t, err)
	_, err = seq.Step(ctx)
	require.NoError(t, err)
	cancel()

	assert.ErrorIs(t, Run(ctx, seq), context.Canceled)
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, b.released)
	assert.Equal(t, 1, c.released)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "done", Done.String())
}
