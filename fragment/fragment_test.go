package fragment

import (
	"testing"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/quantization"
	"github.com/hupe1980/motiondb/xform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const numFrames = 60

// walkBinary is a single segment where the root walks forward one unit per
// frame and the hips sit one unit above it.
func walkBinary() *blob.Binary {
	b := &blob.Binary{
		SampleRate:  30,
		TimeHorizon: 1,
		Joints:      []blob.Joint{{Parent: -1}, {Parent: 0}},
		Segments: []blob.Segment{{
			Source:      blob.Range{NumFrames: numFrames},
			Destination: blob.Range{NumFrames: numFrames},
			Prev:        blob.InvalidSegmentID,
			Next:        blob.InvalidSegmentID,
		}},
		Metrics: []blob.Metric{{
			NumJoints:               1,
			NumPoseSamples:          3,
			PoseTimeSpan:            0.2,
			NumTrajectorySamples:    4,
			TrajectorySampleRange:   0.5,
			TrajectoryDisplacements: true,
		}},
		MetricJoints: []blob.MetricJoint{{Index: 1}},
	}
	for f := range numFrames {
		b.Transforms = append(b.Transforms, walkRoot(f), hips())
	}
	return b
}

func walkRoot(f int) xform.Transform { return xform.Translation(r3.Vec{Z: float64(f)}) }

func hips() xform.Transform { return xform.Translation(r3.Vec{Y: 1}) }

func walkBuffer(t *testing.T) *TransformBuffer {
	t.Helper()
	buf := NewTransformBufferFor(walkBinary(), numFrames)
	for f := range numFrames {
		require.NoError(t, buf.Append(float64(f)/30, walkRoot(f), []xform.Transform{xform.Identity(), hips()}))
	}
	return buf
}

func at(frame uint32) blob.SamplingTime {
	return blob.SamplingTime{TimeIndex: blob.TimeIndex{Frame: frame}}
}

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestTimeSampler(t *testing.T) {
	s := TimeSampler{NumSamples: 4, Range: 0.5, Horizon: 1}
	want := []float64{-0.25, -0.015625, 0.0625, 0.390625, 1}

	got := s.Offsets()
	require.Len(t, got, 5)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	future := TimeSampler{NumSamples: 2, Horizon: 2}.Offsets()
	assert.Equal(t, []float64{0, 0.5, 2}, future)
}

func TestPoseOffsets(t *testing.T) {
	got := PoseOffsets(3, 0.2)
	assert.InDeltaSlice(t, []float64{-0.1, 0, 0.1}, got, 1e-12)
	assert.Equal(t, []float64{0}, PoseOffsets(1, 0.5))
}

func TestPoseFactory(t *testing.T) {
	b := walkBinary()
	f, err := NewPoseFactory(b, 0)
	require.NoError(t, err)
	assert.Equal(t, Layout{NumQuantized: 3, NumTransformed: 1}, f.Layout())

	frag := Create(f, b, at(10))
	require.True(t, frag.IsValid())
	require.Equal(t, 4, frag.NumFeatures())
	for k := range 3 {
		assertVec(t, r3.Vec{Z: 30}, frag.Features[k])
	}
	assertVec(t, r3.Vec{Y: 1}, frag.Features[3])

	// At the last frame the current velocity uses the backward difference;
	// the future sample is clamped and at rest.
	frag = Create(f, b, at(numFrames-1))
	require.True(t, frag.IsValid())
	assertVec(t, r3.Vec{Z: 30}, frag.Features[0])
	assertVec(t, r3.Vec{Z: 30}, frag.Features[1])
	assertVec(t, r3.Vec{}, frag.Features[2])

	assert.False(t, Create(f, b, blob.InvalidSamplingTime).IsValid())

	_, err = NewPoseFactory(b, 1)
	assert.Error(t, err)
}

func TestTrajectoryFactory(t *testing.T) {
	b := walkBinary()
	f, err := NewTrajectoryFactory(b, 0)
	require.NoError(t, err)
	assert.Equal(t, Layout{NumQuantized: 5, NumNormalized: 5, NumTransformed: 4}, f.Layout())

	frag := Create(f, b, at(20))
	require.True(t, frag.IsValid())

	offsets := f.Sampler().Offsets()
	for i := range 5 {
		assertVec(t, r3.Vec{Z: 30}, frag.Features[i])
		assertVec(t, r3.Vec{Z: 1}, frag.Features[5+i])
	}
	for i := range 4 {
		assertVec(t, r3.Vec{Z: 30 * (offsets[i+1] - offsets[i])}, frag.Features[10+i])
	}
}

func TestTrajectoryFactory_Turning(t *testing.T) {
	b := walkBinary()
	// The root faces +X from frame 20 on, while still moving along +Z.
	turn := xform.AxisAngle(r3.Vec{Y: 1}, 1.5707963267948966)
	for f := 20; f < numFrames; f++ {
		b.Transforms[f*2] = xform.New(r3.Vec{Z: float64(f)}, turn)
	}

	f := NewTrajectoryFactoryFor(TimeSampler{NumSamples: 1, Horizon: 0.1}, false)
	frag := Create(f, b, at(20))
	require.True(t, frag.IsValid())

	// In the root frame the motion points along -X and the root faces +Z.
	assertVec(t, r3.Vec{X: -30}, frag.Features[0])
	assertVec(t, r3.Vec{Z: 1}, frag.Features[2])
}

func TestCreateFromBuffer(t *testing.T) {
	b := walkBinary()
	buf := walkBuffer(t)

	pose, err := NewPoseFactory(b, 0)
	require.NoError(t, err)
	traj, err := NewTrajectoryFactory(b, 0)
	require.NoError(t, err)

	for _, factory := range []Factory{pose, traj} {
		want := Create(factory, b, at(20))
		got := CreateFromBuffer(factory, buf, 20.0/30)
		require.True(t, got.IsValid())
		require.Equal(t, want.NumFeatures(), got.NumFeatures())
		for i := range want.Features {
			assertVec(t, want.Features[i], got.Features[i])
		}
	}

	assert.False(t, CreateFromBuffer(pose, buf, 3).IsValid())
	assert.False(t, CreateFromBuffer(pose, NewTransformBufferFor(b, 4), 0).IsValid())
}

func TestTransformBuffer(t *testing.T) {
	buf := NewTransformBuffer([]int{-1, 0}, 30, 3)
	locals := []xform.Transform{xform.Identity(), hips()}

	for f := range 5 {
		require.NoError(t, buf.Append(float64(f), walkRoot(f), locals))
	}
	assert.Equal(t, 3, buf.Len())
	first, last := buf.Span()
	assert.Equal(t, 2.0, first)
	assert.Equal(t, 4.0, last)

	assert.ErrorIs(t, buf.Append(4, walkRoot(4), locals), ErrBufferOrder)
	assert.Error(t, buf.Append(5, walkRoot(5), locals[:1]))

	root, _ := buf.rootAt(2.5)
	assertVec(t, r3.Vec{Z: 2.5}, root.Position)

	buf.Reset()
	assert.Zero(t, buf.Len())
}

func TestReconstruct(t *testing.T) {
	e := &blob.Encoding{
		NumFragments:   1,
		NumQuantized:   1,
		NumTransformed: 1,
		Codes:          []byte{255, 0, 0},
		Centroids:      make([]r3.Vec, 2*quantization.NumCentroids),
		BoundingBoxes:  []quantization.BoundingBox{quantization.IdentityBoundingBox()},
		Quantizers:     []quantization.Quantizer{{Minimum: 0, Range: 30}},
	}
	e.Centroids[0] = r3.Vec{Z: 1}
	e.Centroids[quantization.NumCentroids] = r3.Vec{X: 0.5}

	frag := Reconstruct(e, 0)
	require.True(t, frag.IsValid())
	assertVec(t, r3.Vec{Z: 30}, frag.Features[0])
	assertVec(t, r3.Vec{X: 0.5}, frag.Features[1])

	assert.False(t, Reconstruct(e, 1).IsValid())
	assert.True(t, Layout{NumQuantized: 1, NumTransformed: 1}.Matches(e))
}
