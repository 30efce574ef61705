package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func randomFragments(rng *rand.Rand, numFragments, numFeatures int) []r3.Vec {
	out := make([]r3.Vec, numFragments*numFeatures)
	for i := range out {
		out[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}
	return out
}

func testSettings() TrainingSettings {
	return TrainingSettings{
		NumAttempts:   1,
		NumIterations: 5,
		Seed:          1,
		Concurrency:   2,
		BatchSize:     1,
	}
}

func TestProductQuantizer_Train(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := randomFragments(rng, 300, 3)

	pq := NewProductQuantizer(3, testSettings())
	require.NoError(t, pq.SetSamples(samples))

	steps := 0
	for {
		done, err := pq.Step(context.Background())
		require.NoError(t, err)
		steps++
		if done {
			break
		}
		assert.InDelta(t, float64(steps)/3, pq.Progress(), 1e-12)
	}
	assert.Equal(t, 3, steps)
	assert.True(t, pq.Trained())
	assert.Equal(t, 1.0, pq.Progress())
	assert.Len(t, pq.Centroids(), 3*NumCentroids)

	codes := make([]byte, 3)
	require.NoError(t, pq.Encode(codes, samples[:3]))
	for f, c := range codes {
		centroid := pq.Centroids()[f*NumCentroids+int(c)]
		assert.Less(t, r3.Norm(r3.Sub(centroid, samples[f])), 0.5)
	}
}

func TestProductQuantizer_FewSamplesAreExact(t *testing.T) {
	samples := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}, {X: 2}}

	pq := NewProductQuantizer(2, testSettings())
	require.NoError(t, pq.SetSamples(samples))
	require.NoError(t, pq.Train(context.Background()))

	codes := make([]byte, 2)
	require.NoError(t, pq.Encode(codes, samples[2:]))
	assert.Equal(t, samples[2], pq.Centroids()[int(codes[0])])
	assert.Equal(t, samples[3], pq.Centroids()[NumCentroids+int(codes[1])])
}

func TestProductQuantizer_Cancel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pq := NewProductQuantizer(2, testSettings())
	require.NoError(t, pq.SetSamples(randomFragments(rng, 10, 2)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pq.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, pq.Trained())
	assert.Equal(t, 0.0, pq.Progress())
}

func TestProductQuantizer_ForceComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := randomFragments(rng, 400, 4)

	settings := testSettings()
	settings.BatchSize = 2

	pq := NewProductQuantizer(4, settings)
	require.NoError(t, pq.SetSamples(samples))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the first batch is in flight.
	pq.batchStarted = func() {
		pq.ForceComplete()
		cancel()
	}

	done, err := pq.Step(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 0.5, pq.Progress())

	reference := NewProductQuantizer(4, settings)
	require.NoError(t, reference.SetSamples(samples))
	require.NoError(t, reference.Train(context.Background()))
	assert.Equal(t, reference.Centroids()[:2*NumCentroids], pq.Centroids()[:2*NumCentroids])

	// The flag covers one batch; the next one is not started.
	pq.batchStarted = nil
	_, err = pq.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0.5, pq.Progress())

	// Forcing again runs the next batch on the cancelled context.
	pq.ForceComplete()
	done, err = pq.Step(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, reference.Centroids(), pq.Centroids())
}

func TestProductQuantizer_CancelInFlight(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := randomFragments(rng, 400, 2)

	settings := testSettings()
	settings.BatchSize = 2
	settings.NumIterations = 1000

	pq := NewProductQuantizer(2, settings)
	require.NoError(t, pq.SetSamples(samples))

	ctx, cancel := context.WithCancel(context.Background())
	pq.batchStarted = cancel

	_, err := pq.Step(ctx)
	if err != nil {
		// The batch may finish before it observes the cancellation.
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, pq.Progress())
	}
}

func TestProductQuantizer_NotTrained(t *testing.T) {
	pq := NewProductQuantizer(1, testSettings())
	err := pq.Encode(make([]byte, 1), []r3.Vec{{}})
	assert.ErrorIs(t, err, ErrNotTrained)

	assert.Error(t, pq.SetSamples(nil))
}
