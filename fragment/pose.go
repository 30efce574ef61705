package fragment

import (
	"fmt"

	"github.com/hupe1980/motiondb/blob"
	"gonum.org/v1/gonum/spatial/r3"
)

// PoseFactory samples the pose of the metric joints.
//
// Layout: numJoints*numSamples velocities (quantized, joint major) followed
// by numJoints character-space positions (transformed).
type PoseFactory struct {
	joints  []int
	offsets []float64
}

// NewPoseFactory creates the pose factory of a metric.
func NewPoseFactory(b *blob.Binary, id blob.MetricID) (*PoseFactory, error) {
	m, ok := b.Metric(id)
	if !ok {
		return nil, fmt.Errorf("fragment: invalid metric %s", id)
	}
	joints := make([]int, 0, m.NumJoints)
	for _, j := range b.MetricJointsOf(id) {
		joints = append(joints, int(j.Index))
	}
	return NewPoseFactoryFor(joints, int(m.NumPoseSamples), m.PoseTimeSpan), nil
}

// NewPoseFactoryFor creates a pose factory for rig joint indices.
func NewPoseFactoryFor(joints []int, numSamples int, timeSpan float64) *PoseFactory {
	return &PoseFactory{
		joints:  joints,
		offsets: PoseOffsets(max(numSamples, 1), timeSpan),
	}
}

// Layout implements Factory.
func (f *PoseFactory) Layout() Layout {
	return Layout{
		NumQuantized:   len(f.joints) * len(f.offsets),
		NumTransformed: len(f.joints),
	}
}

// CreateInto implements Factory.
func (f *PoseFactory) CreateInto(dst []r3.Vec, b *blob.Binary, t blob.SamplingTime) bool {
	if !b.IsValidSamplingTime(t) {
		return false
	}
	f.create(dst, binarySampler{b: b, t: t})
	return true
}

// CreateFromBufferInto implements Factory.
func (f *PoseFactory) CreateFromBufferInto(dst []r3.Vec, buf *TransformBuffer, time float64) bool {
	if !buf.valid(time) {
		return false
	}
	f.create(dst, newBufferSampler(buf, time))
	return true
}

func (f *PoseFactory) create(dst []r3.Vec, s sampler) {
	numJoints := len(f.joints)
	numSamples := len(f.offsets)
	vel := make([]r3.Vec, numJoints)

	for k, offset := range f.offsets {
		velocities(s, offset, f.joints, vel)
		for j := range numJoints {
			dst[j*numSamples+k] = vel[j]
		}
	}

	positions := dst[numJoints*numSamples:]
	s.sample(0, f.joints, positions)
}
