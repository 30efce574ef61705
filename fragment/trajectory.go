package fragment

import (
	"fmt"

	"github.com/hupe1980/motiondb/blob"
	"gonum.org/v1/gonum/spatial/r3"
)

// TrajectoryFactory samples the root motion around a time.
//
// Layout: N+1 root velocities (quantized), N+1 root forward directions
// (normalized) and, when enabled, N displacements between consecutive
// samples (transformed).
type TrajectoryFactory struct {
	sampler       TimeSampler
	displacements bool
}

// NewTrajectoryFactory creates the trajectory factory of a metric.
func NewTrajectoryFactory(b *blob.Binary, id blob.MetricID) (*TrajectoryFactory, error) {
	m, ok := b.Metric(id)
	if !ok {
		return nil, fmt.Errorf("fragment: invalid metric %s", id)
	}
	return NewTrajectoryFactoryFor(TimeSampler{
		NumSamples: int(m.NumTrajectorySamples),
		Range:      m.TrajectorySampleRange,
		Horizon:    b.TimeHorizon,
	}, m.TrajectoryDisplacements), nil
}

// NewTrajectoryFactoryFor creates a trajectory factory from a sampler.
func NewTrajectoryFactoryFor(s TimeSampler, displacements bool) *TrajectoryFactory {
	s.NumSamples = max(s.NumSamples, 1)
	return &TrajectoryFactory{sampler: s, displacements: displacements}
}

// Sampler returns the time sampler.
func (f *TrajectoryFactory) Sampler() TimeSampler { return f.sampler }

// Layout implements Factory.
func (f *TrajectoryFactory) Layout() Layout {
	l := Layout{
		NumQuantized:  f.sampler.Len(),
		NumNormalized: f.sampler.Len(),
	}
	if f.displacements {
		l.NumTransformed = f.sampler.NumSamples
	}
	return l
}

// CreateInto implements Factory.
func (f *TrajectoryFactory) CreateInto(dst []r3.Vec, b *blob.Binary, t blob.SamplingTime) bool {
	if !b.IsValidSamplingTime(t) {
		return false
	}
	f.create(dst, binarySampler{b: b, t: t})
	return true
}

// CreateFromBufferInto implements Factory.
func (f *TrajectoryFactory) CreateFromBufferInto(dst []r3.Vec, buf *TransformBuffer, time float64) bool {
	if !buf.valid(time) {
		return false
	}
	f.create(dst, newBufferSampler(buf, time))
	return true
}

func (f *TrajectoryFactory) create(dst []r3.Vec, s sampler) {
	n := f.sampler.Len()
	velocityOut := dst[:n]
	forwardOut := dst[n : 2*n]

	var prev r3.Vec
	for i := range n {
		offset := f.sampler.Offset(i)
		velocities(s, offset, nil, velocityOut[i:i+1])

		delta, _ := s.sample(offset, nil, nil)
		forwardOut[i] = delta.Forward()

		if f.displacements && i > 0 {
			dst[2*n+i-1] = r3.Sub(delta.Position, prev)
		}
		prev = delta.Position
	}
}
