package quantization

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/hupe1980/motiondb/internal/kmeans"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumCentroids is the codebook size of every feature. Codes are single bytes.
const NumCentroids = 256

// ErrNotTrained is returned when encoding with an untrained quantizer.
var ErrNotTrained = errors.New("quantization: product quantizer not trained")

// TrainingSettings controls product quantizer training.
type TrainingSettings struct {
	NumAttempts          int   `yaml:"num_attempts" json:"numAttempts"`
	NumIterations        int   `yaml:"num_iterations" json:"numIterations"`
	MinimumNumberSamples int   `yaml:"minimum_number_samples" json:"minimumNumberSamples"`
	MaximumNumberSamples int   `yaml:"maximum_number_samples" json:"maximumNumberSamples"`
	Seed                 int64 `yaml:"seed" json:"seed"`
	// Concurrency bounds the number of features trained at once. Zero means
	// GOMAXPROCS.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// BatchSize is the number of features trained per Step. Zero means
	// Concurrency.
	BatchSize int `yaml:"batch_size" json:"batchSize"`
}

// DefaultTrainingSettings returns the settings used when a metric does not
// override them.
func DefaultTrainingSettings() TrainingSettings {
	cfg := kmeans.DefaultConfig()
	return TrainingSettings{
		NumAttempts:          cfg.NumAttempts,
		NumIterations:        cfg.NumIterations,
		MinimumNumberSamples: cfg.MinimumNumberSamples,
		MaximumNumberSamples: cfg.MaximumNumberSamples,
		Seed:                 1,
	}
}

// ProductQuantizer learns an independent 256-centroid table for each
// 3-vector feature of a fragment set.
//
// Training is incremental: every Step trains one batch of features, so a
// driver can observe progress and cancel between batches.
type ProductQuantizer struct {
	numFeatures int
	settings    TrainingSettings
	samples     []r3.Vec // numFragments * numFeatures, fragment major
	centroids   []r3.Vec // numFeatures * NumCentroids

	next          int
	done          atomic.Int64
	forceComplete atomic.Bool

	// batchStarted is called once the batch context of a Step is set up.
	batchStarted func()
}

// NewProductQuantizer creates a quantizer for fragments of numFeatures
// features.
func NewProductQuantizer(numFeatures int, settings TrainingSettings) *ProductQuantizer {
	if settings.Concurrency <= 0 {
		settings.Concurrency = runtime.GOMAXPROCS(0)
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = settings.Concurrency
	}
	return &ProductQuantizer{
		numFeatures: numFeatures,
		settings:    settings,
		centroids:   make([]r3.Vec, numFeatures*NumCentroids),
	}
}

// SetSamples assigns the training set. samples holds numFeatures vectors per
// fragment. Training restarts from the first feature.
func (pq *ProductQuantizer) SetSamples(samples []r3.Vec) error {
	if pq.numFeatures == 0 || len(samples) == 0 || len(samples)%pq.numFeatures != 0 {
		return fmt.Errorf("quantization: %d samples do not divide into %d features", len(samples), pq.numFeatures)
	}
	pq.samples = samples
	pq.next = 0
	pq.done.Store(0)
	return nil
}

// NumFeatures returns the number of features per fragment.
func (pq *ProductQuantizer) NumFeatures() int { return pq.numFeatures }

// Progress returns the trained fraction of features in [0,1].
func (pq *ProductQuantizer) Progress() float64 {
	if pq.numFeatures == 0 {
		return 1
	}
	return float64(pq.done.Load()) / float64(pq.numFeatures)
}

// Trained reports whether every feature has a centroid table.
func (pq *ProductQuantizer) Trained() bool {
	return pq.numFeatures > 0 && int(pq.done.Load()) == pq.numFeatures
}

// ForceComplete makes the in-flight batch, or the next one if none is
// running, run to the end even when its context is cancelled, so that every
// centroid table of the batch is fully written. It must be called before the
// cancellation reaches the batch and applies to a single batch. Later
// batches are not started once the context is done.
func (pq *ProductQuantizer) ForceComplete() {
	pq.forceComplete.Store(true)
}

// Step trains the next batch of features. It returns true once all features
// are trained.
func (pq *ProductQuantizer) Step(ctx context.Context) (bool, error) {
	if pq.Trained() {
		return true, nil
	}
	if len(pq.samples) == 0 {
		return false, kmeans.ErrNoPoints
	}
	if err := ctx.Err(); err != nil && !pq.forceComplete.Load() {
		return false, err
	}

	first := pq.next
	last := min(first+pq.settings.BatchSize, pq.numFeatures)

	// The batch only sees the cancellation of ctx while it is not forced.
	batchCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	unwatch := context.AfterFunc(ctx, func() {
		if !pq.forceComplete.Load() {
			stop()
		}
	})
	defer unwatch()
	defer pq.forceComplete.Store(false)

	if pq.batchStarted != nil {
		pq.batchStarted()
	}

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(pq.settings.Concurrency)

	for f := first; f < last; f++ {
		g.Go(func() error {
			points := pq.featureSamples(f)
			rng := rand.New(rand.NewSource(pq.settings.Seed + int64(f)))

			res, err := kmeans.Train(gctx, points, pq.kmeansConfig(), rng)
			if err != nil {
				return fmt.Errorf("feature %d: %w", f, err)
			}
			copy(pq.centroids[f*NumCentroids:(f+1)*NumCentroids], res.Centroids)
			pq.done.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		pq.done.Store(int64(pq.next))
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
			return false, ctxErr
		}
		return false, err
	}

	pq.next = last
	return pq.Trained(), nil
}

// Train runs Step until training completes or ctx is done.
func (pq *ProductQuantizer) Train(ctx context.Context) error {
	for {
		done, err := pq.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (pq *ProductQuantizer) kmeansConfig() kmeans.Config {
	return kmeans.Config{
		K:                    NumCentroids,
		NumAttempts:          pq.settings.NumAttempts,
		NumIterations:        pq.settings.NumIterations,
		MinimumNumberSamples: pq.settings.MinimumNumberSamples,
		MaximumNumberSamples: pq.settings.MaximumNumberSamples,
	}
}

func (pq *ProductQuantizer) featureSamples(f int) []r3.Vec {
	n := len(pq.samples) / pq.numFeatures
	points := make([]r3.Vec, n)
	for i := range points {
		points[i] = pq.samples[i*pq.numFeatures+f]
	}
	return points
}

// Centroids returns the trained tables, NumCentroids per feature.
func (pq *ProductQuantizer) Centroids() []r3.Vec {
	return pq.centroids
}

// Encode writes one nearest-centroid code per feature of fragment to dst.
func (pq *ProductQuantizer) Encode(dst []byte, fragment []r3.Vec) error {
	if !pq.Trained() {
		return ErrNotTrained
	}
	if len(fragment) != pq.numFeatures || len(dst) < pq.numFeatures {
		return fmt.Errorf("quantization: fragment has %d features, want %d", len(fragment), pq.numFeatures)
	}
	for f, v := range fragment {
		code, _ := kmeans.Nearest(v, pq.centroids[f*NumCentroids:(f+1)*NumCentroids])
		dst[f] = byte(code)
	}
	return nil
}

// Release drops the training set.
func (pq *ProductQuantizer) Release() {
	pq.samples = nil
}
