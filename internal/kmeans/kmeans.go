package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoPoints is returned when training is attempted on an empty point set.
var ErrNoPoints = errors.New("kmeans: no points")

// Config controls a training run.
type Config struct {
	// K is the number of centroids produced.
	K int
	// NumAttempts is the number of independent restarts. The attempt with the
	// lowest inertia wins.
	NumAttempts int
	// NumIterations caps the Lloyd iterations of a single attempt.
	NumIterations int
	// MinimumNumberSamples is the per-centroid training set floor. Smaller
	// inputs are resampled with replacement up to K*MinimumNumberSamples.
	MinimumNumberSamples int
	// MaximumNumberSamples is the per-centroid training set cap. Larger
	// inputs are subsampled without replacement down to K*MaximumNumberSamples.
	MaximumNumberSamples int
}

// DefaultConfig returns the configuration used for feature codebooks.
func DefaultConfig() Config {
	return Config{
		K:                    256,
		NumAttempts:          16,
		NumIterations:        25,
		MinimumNumberSamples: 32,
		MaximumNumberSamples: 256,
	}
}

// Result is the outcome of a training run.
type Result struct {
	Centroids []r3.Vec
	Inertia   float64
}

// Train clusters points into cfg.K centroids using Lloyd's algorithm with
// k-means++ seeding. It always returns exactly cfg.K centroids; when there are
// fewer distinct points than centroids the tail repeats the last centroid.
func Train(ctx context.Context, points []r3.Vec, cfg Config, rng *rand.Rand) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrNoPoints
	}
	if cfg.K <= 0 {
		return Result{}, errors.New("kmeans: K must be positive")
	}
	if cfg.NumAttempts <= 0 {
		cfg.NumAttempts = 1
	}
	if cfg.NumIterations <= 0 {
		cfg.NumIterations = 1
	}

	if distinct := uniquePoints(points); len(distinct) <= cfg.K {
		return Result{Centroids: pad(distinct, cfg.K)}, nil
	}

	samples := points
	if limit := cfg.K * cfg.MaximumNumberSamples; cfg.MaximumNumberSamples > 0 && len(samples) > limit {
		samples = subsample(points, limit, rng)
	} else if floor := cfg.K * cfg.MinimumNumberSamples; len(samples) < floor {
		samples = resample(points, floor, rng)
	}

	best := Result{Inertia: math.Inf(1)}
	assignments := make([]int, len(samples))
	for attempt := 0; attempt < cfg.NumAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		centroids := seedPlusPlus(samples, cfg.K, rng)
		inertia, err := lloyd(ctx, samples, centroids, assignments, cfg.NumIterations, rng)
		if err != nil {
			return Result{}, err
		}
		if inertia < best.Inertia {
			best = Result{Centroids: centroids, Inertia: inertia}
		}
	}

	return best, nil
}

func lloyd(ctx context.Context, samples, centroids []r3.Vec, assignments []int, maxIter int, rng *rand.Rand) (float64, error) {
	k := len(centroids)
	sums := make([]r3.Vec, k)
	counts := make([]int, k)

	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		changed := false
		for i, p := range samples {
			c, _ := Nearest(p, centroids)
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		for j := range sums {
			sums[j] = r3.Vec{}
			counts[j] = 0
		}
		for i, p := range samples {
			c := assignments[i]
			sums[c] = r3.Add(sums[c], p)
			counts[c]++
		}
		for j := range centroids {
			if counts[j] > 0 {
				centroids[j] = r3.Scale(1/float64(counts[j]), sums[j])
			} else {
				// Re-seed empty cluster from a random sample.
				centroids[j] = samples[rng.Intn(len(samples))]
			}
		}
	}

	var inertia float64
	for _, p := range samples {
		_, d := Nearest(p, centroids)
		inertia += d
	}
	return inertia, nil
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the closest centroid chosen so far.
func seedPlusPlus(samples []r3.Vec, k int, rng *rand.Rand) []r3.Vec {
	centroids := make([]r3.Vec, 0, k)
	centroids = append(centroids, samples[rng.Intn(len(samples))])

	dist := make([]float64, len(samples))
	for i, p := range samples {
		dist[i] = r3.Norm2(r3.Sub(p, centroids[0]))
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		next := samples[rng.Intn(len(samples))]
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = samples[i]
					break
				}
			}
		}
		centroids = append(centroids, next)

		for i, p := range samples {
			if d := r3.Norm2(r3.Sub(p, next)); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// Nearest returns the index of the centroid closest to p and the squared
// distance to it.
func Nearest(p r3.Vec, centroids []r3.Vec) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for j, c := range centroids {
		if d := r3.Norm2(r3.Sub(p, c)); d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best, bestDist
}

func subsample(points []r3.Vec, n int, rng *rand.Rand) []r3.Vec {
	perm := rng.Perm(len(points))[:n]
	sort.Ints(perm)
	out := make([]r3.Vec, n)
	for i, idx := range perm {
		out[i] = points[idx]
	}
	return out
}

func resample(points []r3.Vec, n int, rng *rand.Rand) []r3.Vec {
	out := make([]r3.Vec, n)
	copy(out, points)
	for i := len(points); i < n; i++ {
		out[i] = points[rng.Intn(len(points))]
	}
	return out
}

func uniquePoints(points []r3.Vec) []r3.Vec {
	seen := make(map[r3.Vec]struct{}, len(points))
	out := make([]r3.Vec, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func pad(points []r3.Vec, k int) []r3.Vec {
	out := make([]r3.Vec, k)
	n := copy(out, points)
	for i := n; i < k; i++ {
		out[i] = points[n-1]
	}
	return out
}
