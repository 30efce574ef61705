package fragment

import (
	"math"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// TimeSampler produces the trajectory sample offsets. Offsets are denser
// near zero: sample i of N maps u = i/N to s = -r + (1+r)u and to the
// offset horizon * sign(s) * s². Range r in [0,1] sets the share of the
// past; r = 0 samples only the future.
type TimeSampler struct {
	NumSamples int
	Range      float64
	Horizon    float64
}

// Len returns the number of offsets, NumSamples + 1.
func (s TimeSampler) Len() int { return s.NumSamples + 1 }

// Offset returns offset i in seconds.
func (s TimeSampler) Offset(i int) float64 {
	if s.NumSamples <= 0 {
		return 0
	}
	r := math.Max(0, math.Min(1, s.Range))
	u := float64(i) / float64(s.NumSamples)
	v := -r + (1+r)*u
	if v < 0 {
		return -s.Horizon * v * v
	}
	return s.Horizon * v * v
}

// Offsets returns all offsets in ascending order.
func (s TimeSampler) Offsets() []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Offset(i)
	}
	return out
}

// PoseOffsets returns n offsets spread evenly over a window of span seconds
// centered on zero.
func PoseOffsets(n int, span float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	for k := range out {
		out[k] = -span/2 + span*float64(k)/float64(n-1)
	}
	return out
}

// sampler walks the timeline around a fixed sampling time.
type sampler interface {
	// sample returns the root motion from the sampling time to offset
	// seconds later, and writes the character-space positions of joints at
	// that time into dst. key identifies the resolved time; equal keys mean
	// the offset was clamped to the same instant.
	sample(offset float64, joints []int, dst []r3.Vec) (delta xform.Transform, key float64)
	step() float64
}

type binarySampler struct {
	b *blob.Binary
	t blob.SamplingTime
}

func (s binarySampler) sample(offset float64, joints []int, dst []r3.Vec) (xform.Transform, float64) {
	res := s.b.Advance(s.t, offset)
	for i, j := range joints {
		dst[i], _ = s.b.GetCharacterSpaceJointPosition(res.Time, j)
	}
	return res.Delta, float64(s.b.GlobalFrame(res.Time.TimeIndex)) + res.Time.Theta
}

func (s binarySampler) step() float64 { return 1 / s.b.SampleRate }

type bufferSampler struct {
	buf  *TransformBuffer
	time float64
	root xform.Transform
}

func newBufferSampler(buf *TransformBuffer, time float64) bufferSampler {
	root, _ := buf.rootAt(time)
	return bufferSampler{buf: buf, time: time, root: root}
}

func (s bufferSampler) sample(offset float64, joints []int, dst []r3.Vec) (xform.Transform, float64) {
	t := s.buf.clamp(s.time + offset)
	root, f := s.buf.rootAt(t)
	for i, j := range joints {
		dst[i] = s.buf.characterSpaceAt(f, t, j).Position
	}
	return xform.Delta(s.root, root), t
}

func (s bufferSampler) step() float64 { return 1 / s.buf.sampleRate }

// velocities writes the velocity of every joint at offset, in the frame of
// the sampling time. A nil joint list samples the root. The forward
// difference falls back to the backward difference where the timeline ends.
func velocities(s sampler, offset float64, joints []int, dst []r3.Vec) {
	n := max(len(joints), 1)
	lo := make([]r3.Vec, n)
	hi := make([]r3.Vec, n)
	h := s.step()

	dLo, kLo := s.sample(offset, joints, lo)
	dHi, kHi := s.sample(offset+h, joints, hi)
	if kHi == kLo {
		copy(hi, lo)
		dHi = dLo
		dLo, _ = s.sample(offset-h, joints, lo)
	}

	for i := range n {
		pLo := dLo.TransformPoint(lo[i])
		pHi := dHi.TransformPoint(hi[i])
		dst[i] = r3.Scale(1/h, r3.Sub(pHi, pLo))
	}
}
