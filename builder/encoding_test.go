package builder

import (
	"context"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/hupe1980/motiondb/quantization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/spatial/r3"
)

func trainingEncoder(t *testing.T, completeBatches bool) *encoder {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	samples := make([]r3.Vec, 300*2)
	for i := range samples {
		samples[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}

	pq := quantization.NewProductQuantizer(2, quantization.TrainingSettings{
		NumAttempts:   1,
		NumIterations: 3,
		Seed:          1,
		Concurrency:   1,
		BatchSize:     1,
	})
	require.NoError(t, pq.SetSamples(samples))

	return &encoder{
		jobs:            []encodeJob{{kind: "pose"}},
		phase:           phaseTrain,
		pq:              pq,
		completeBatches: completeBatches,
		logger:          slog.New(slog.DiscardHandler),
		progress:        rate.Sometimes{First: 1},
	}
}

func TestEncoder_CompleteBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("forced", func(t *testing.T) {
		e := trainingEncoder(t, true)
		_, err := e.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.5, e.pq.Progress())
	})

	t.Run("not forced", func(t *testing.T) {
		e := trainingEncoder(t, false)
		_, err := e.Step(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, e.pq.Progress())
	})
}

func TestWithForceCompleteBatches(t *testing.T) {
	assert.True(t, New().completeBatches)
	assert.False(t, New(WithForceCompleteBatches(false)).completeBatches)
}
