package builder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/fragment"
	"github.com/hupe1980/motiondb/internal/resource"
	"github.com/hupe1980/motiondb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walk(name string, frames int, speed float64) anim.Clip {
	return testutil.WalkClip(testutil.ClipOptions{Name: name, NumFrames: frames, Speed: speed})
}

func tagged(name string, frames int, speed float64) anim.Clip {
	c := walk(name, frames, speed)
	testutil.TagAll(&c, testutil.Locomotion(speed))
	return c
}

func testInput(clips ...anim.Clip) Input {
	cfg := DefaultConfig()
	cfg.TimeHorizon = 0.2
	cfg.Training.NumAttempts = 1
	cfg.Training.NumIterations = 4
	return Input{
		Rig:    testutil.Rig(),
		Clips:  clips,
		Types:  testutil.Registry(),
		Config: cfg,
	}
}

func locomotionMetric() MetricConfig {
	return DefaultMetricConfig("locomotion", testutil.LocomotionType.Name, "hips", "leftFoot", "rightFoot")
}

func build(t *testing.T, in Input, opts ...Option) *blob.Binary {
	t.Helper()
	bin, err := New(opts...).Build(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, bin)
	return bin
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []string
	builds int
	onDone func(stage string)
}

func (o *recordingObserver) OnStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	o.stages = append(o.stages, stage)
	o.mu.Unlock()
	if o.onDone != nil {
		o.onDone(stage)
	}
}

func (o *recordingObserver) OnBuild(time.Duration, int, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.builds++
}

func TestBuild(t *testing.T) {
	in := testInput(tagged("walk", 60, 1.5))
	in.Metrics = []MetricConfig{locomotionMetric()}

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20, MaxWorkers: 4})
	obs := &recordingObserver{}
	bin := build(t, in, WithResourceController(rc), WithMetricsObserver(obs))

	require.NoError(t, bin.Verify())
	assert.NotEqual(t, uuid.Nil, bin.BuildID)
	assert.Equal(t, 60, bin.NumFrames())
	require.Len(t, bin.Segments, 1)
	require.Len(t, bin.Intervals, 1)
	require.Len(t, bin.CodeBooks, 1)

	cb := bin.CodeBooks[0]
	assert.Equal(t, uint32(60), cb.NumFragments)
	assert.Equal(t, uint32(9), cb.Pose.NumQuantized)
	assert.Equal(t, uint32(3), cb.Pose.NumTransformed)
	assert.Equal(t, uint32(5), cb.Trajectory.NumQuantized)
	assert.Equal(t, uint32(5), cb.Trajectory.NumNormalized)
	assert.Zero(t, cb.Trajectory.NumTransformed)
	assert.Nil(t, cb.Trajectory.BoundingBoxes)

	assert.Equal(t, []string{"types", "metrics", "segments", "links", "intervals", "tags", "codebooks", "encoding", "assemble"}, obs.stages)
	assert.Equal(t, 1, obs.builds)
	assert.Zero(t, rc.MemoryUsage())
}

func TestBuild_Reconstruct(t *testing.T) {
	in := testInput(tagged("walk", 60, 1.5))
	in.Metrics = []MetricConfig{locomotionMetric()}
	bin := build(t, in)

	pose, err := fragment.NewPoseFactory(bin, 0)
	require.NoError(t, err)
	traj, err := fragment.NewTrajectoryFactory(bin, 0)
	require.NoError(t, err)

	cb := &bin.CodeBooks[0]
	for _, frame := range []uint32{0, 17, 59} {
		ti := blob.TimeIndex{Segment: 0, Frame: frame}
		id, idx, ok := bin.FragmentIndex(ti)
		require.True(t, ok)
		assert.Equal(t, blob.CodeBookID(0), id)

		for _, tc := range []struct {
			factory fragment.Factory
			enc     *blob.Encoding
		}{
			{pose, &cb.Pose},
			{traj, &cb.Trajectory},
		} {
			raw := fragment.Create(tc.factory, bin, blob.SamplingTime{TimeIndex: ti})
			require.True(t, raw.IsValid())
			rec := fragment.Reconstruct(tc.enc, idx)
			require.True(t, rec.IsValid())

			assert.Zero(t, tc.enc.FeatureDeviation(raw.Features, raw.Features))
			assert.Zero(t, tc.enc.FeatureDeviation(rec.Features, rec.Features))
			assert.Less(t, tc.enc.FeatureDeviation(raw.Features, rec.Features), 0.01)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	in := testInput(tagged("walk", 45, 1.5), tagged("run", 40, 4))
	in.Metrics = []MetricConfig{locomotionMetric()}
	id := uuid.MustParse("0b5b8bde-2c55-4a43-9f6a-4d7e3c6a1f00")

	a := build(t, in, WithBuildID(id))
	b := build(t, in, WithBuildID(id))
	assert.Equal(t, a, b)
	assert.Equal(t, id, a.BuildID)
}

func TestBuild_Resample(t *testing.T) {
	in := testInput(tagged("walk", 10, 1))
	in.Config.SampleRate = 60

	bin := build(t, in)

	require.Len(t, bin.Segments, 1)
	seg := bin.Segments[0]
	assert.Equal(t, blob.Range{First: 0, NumFrames: 10}, seg.Source)
	assert.Equal(t, blob.Range{First: 0, NumFrames: 20}, seg.Destination)
	assert.Equal(t, 20, bin.NumFrames())
	assert.Equal(t, blob.Range{First: 0, NumFrames: 20}, bin.Tags[0].Range)

	// Odd destination frames fall between source frames.
	root1, ok := bin.JointTransform(blob.TimeIndex{Segment: 0, Frame: 1}, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5/30, root1.Position.Z, 1e-6)
}

func TestBuild_OverlappingTags(t *testing.T) {
	c := walk("walk", 15, 1)
	testutil.TagFrames(&c, 0, 10, testutil.Locomotion(1))
	testutil.TagFrames(&c, 5, 15, testutil.Locomotion(2))

	bin := build(t, testInput(c))

	require.Len(t, bin.Segments, 1)
	require.Len(t, bin.Intervals, 3)

	want := []struct {
		r    blob.Range
		tags []blob.TagID
	}{
		{blob.Range{First: 0, NumFrames: 5}, []blob.TagID{0}},
		{blob.Range{First: 5, NumFrames: 5}, []blob.TagID{0, 1}},
		{blob.Range{First: 10, NumFrames: 5}, []blob.TagID{1}},
	}
	for i, w := range want {
		iv := bin.Intervals[i]
		assert.Equal(t, w.r, iv.Range)
		tags, ok := bin.TagList(iv.TagList)
		require.True(t, ok)
		assert.Equal(t, w.tags, tags)
		assert.False(t, iv.CodeBook.IsValid())
	}
}

func TestBuild_TagListDedup(t *testing.T) {
	c := walk("walk", 30, 1)
	testutil.TagFrames(&c, 0, 30, testutil.Locomotion(1))
	testutil.TagFrames(&c, 10, 20, testutil.Idle())

	bin := build(t, testInput(c))

	require.Len(t, bin.Intervals, 3)
	assert.Len(t, bin.TagLists, 2)
	assert.Equal(t, bin.Intervals[0].TagList, bin.Intervals[2].TagList)
	assert.NotEqual(t, bin.Intervals[0].TagList, bin.Intervals[1].TagList)
}

func TestBuild_AdjacentTagsCoalesce(t *testing.T) {
	c := walk("walk", 40, 1)
	testutil.TagFrames(&c, 0, 10, testutil.Locomotion(1))
	testutil.TagFrames(&c, 10, 20, testutil.Locomotion(2))
	testutil.TagFrames(&c, 30, 40, testutil.Locomotion(1))

	bin := build(t, testInput(c))

	require.Len(t, bin.Segments, 2)
	assert.Equal(t, blob.Range{First: 0, NumFrames: 20}, bin.Segments[0].Source)
	assert.Equal(t, blob.Range{First: 30, NumFrames: 10}, bin.Segments[1].Source)
	assert.Equal(t, blob.Range{First: 20, NumFrames: 10}, bin.Segments[1].Destination)
	// Equal trait values share one trait.
	assert.Len(t, bin.Traits, 2)
	assert.Equal(t, bin.Tags[0].Trait, bin.Tags[2].Trait)
}

func TestBuild_DroppedAnnotations(t *testing.T) {
	c := tagged("walk", 30, 1)
	c.Tags = append(c.Tags,
		anim.Tag{Start: 0.2, Duration: 0, Trait: testutil.Idle()},
		anim.Tag{Start: 5, Duration: 1, Trait: testutil.Idle()},
	)
	c.Markers = []anim.Marker{
		{Time: 0.5, Trait: testutil.Idle()},
		{Time: 10, Trait: testutil.Idle()},
	}

	bin := build(t, testInput(c))

	assert.Len(t, bin.Tags, 1)
	require.Len(t, bin.Markers, 1)
	assert.Equal(t, uint32(15), bin.Markers[0].Frame)
	assert.Equal(t, uint32(1), bin.Segments[0].NumMarkers)
}

func TestBuild_BoundaryLinks(t *testing.T) {
	a := tagged("a", 30, 1)
	a.PostBoundaryClip = "b"
	b := tagged("b", 30, 1)
	b.PreBoundaryClip = "a"
	b.PostBoundaryClip = "missing"

	bin := build(t, testInput(a, b))

	require.Len(t, bin.Segments, 2)
	assert.Equal(t, blob.SegmentID(1), bin.Segments[0].Next)
	assert.Equal(t, blob.SegmentID(0), bin.Segments[1].Prev)
	assert.False(t, bin.Segments[0].Prev.IsValid())
	assert.False(t, bin.Segments[1].Next.IsValid())

	res := bin.Advance(blob.SamplingTime{TimeIndex: blob.TimeIndex{Segment: 0, Frame: 28}}, 3.0/30)
	assert.True(t, res.Crossed)
	assert.Equal(t, blob.SegmentID(1), res.Time.Segment)
}

func TestBuild_PartialClipIsNotLinked(t *testing.T) {
	a := walk("a", 30, 1)
	testutil.TagFrames(&a, 0, 20, testutil.Locomotion(1))
	a.PostBoundaryClip = "b"
	b := tagged("b", 30, 1)

	bin := build(t, testInput(a, b))

	assert.False(t, bin.Segments[0].Next.IsValid())
}

func TestBuild_CodeBookContainment(t *testing.T) {
	in := testInput(tagged("walk", 30, 1), tagged("run", 30, 4), tagged("walk2", 20, 1))
	in.Metrics = []MetricConfig{locomotionMetric()}

	bin := build(t, in)

	require.Len(t, bin.CodeBooks, 2)
	total := 0
	for i, cb := range bin.CodeBooks {
		owned := bin.CodeBookIntervalsOf(blob.CodeBookID(i))
		for _, id := range owned {
			assert.Equal(t, blob.CodeBookID(i), bin.Intervals[id].CodeBook)
		}
		total += int(cb.NumFragments)
	}
	assert.Equal(t, 80, total)
	assert.Equal(t, uint32(50), bin.CodeBooks[0].NumFragments)

	for i, iv := range bin.Intervals {
		require.True(t, iv.CodeBook.IsValid())
		assert.Contains(t, bin.CodeBookIntervalsOf(iv.CodeBook), blob.IntervalID(i))
	}
}

func TestBuild_TagTooShort(t *testing.T) {
	in := testInput(tagged("walk", 3, 1), tagged("run", 4, 1), tagged("long", 30, 1))
	in.Metrics = []MetricConfig{locomotionMetric()}

	_, err := New().Build(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagTooShort)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	var tooShort *TagTooShortError
	require.ErrorAs(t, err, &tooShort)
	assert.Equal(t, "walk", tooShort.Clip)
	assert.Equal(t, 3, tooShort.Frames)
	assert.Equal(t, 6, tooShort.Required)
}

func TestBuild_InvalidMetrics(t *testing.T) {
	in := testInput(tagged("walk", 30, 1))
	in.Metrics = []MetricConfig{
		DefaultMetricConfig("a", testutil.LocomotionType.Name, "hips", "tail", "wing"),
		DefaultMetricConfig("b", testutil.LocomotionType.Name),
		DefaultMetricConfig("c", "Unknown", "hips"),
	}

	_, err := New().Build(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingJoint)
	assert.ErrorIs(t, err, ErrNoJoints)
	assert.ErrorIs(t, err, ErrInvalidMetric)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)
}

func TestBuild_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"no clips", testInput(), ErrNoClips},
		{"duplicate clip", testInput(tagged("walk", 10, 1), tagged("walk", 10, 1)), ErrDuplicateClip},
		{"untagged", testInput(walk("walk", 10, 1)), ErrEmptyDatabase},
		{"sample rate", func() Input {
			in := testInput(tagged("walk", 10, 1))
			in.Config.SampleRate = 0
			return in
		}(), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, err := New().Build(context.Background(), tt.in)
			assert.Nil(t, bin)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	in := testInput(tagged("walk", 60, 1.5))
	in.Metrics = []MetricConfig{locomotionMetric()}

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bin, err := New().Build(ctx, in)
		assert.Nil(t, bin)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("between stages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rc := resource.NewController(resource.Config{})
		obs := &recordingObserver{onDone: func(stage string) {
			if stage == "codebooks" {
				cancel()
			}
		}}

		bin, err := New(WithResourceController(rc), WithMetricsObserver(obs)).Build(ctx, in)
		assert.Nil(t, bin)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotContains(t, obs.stages, "assemble")
		assert.Zero(t, rc.MemoryUsage())
	})
}

func TestBuild_MemoryLimit(t *testing.T) {
	in := testInput(tagged("walk", 60, 1.5))
	in.Metrics = []MetricConfig{locomotionMetric()}
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1024})

	_, err := New(WithResourceController(rc)).Build(context.Background(), in)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Zero(t, rc.MemoryUsage())
}

func TestBuild_SerializationRoundTrip(t *testing.T) {
	in := testInput(tagged("walk", 40, 1.5))
	in.Metrics = []MetricConfig{locomotionMetric()}
	bin := build(t, in)

	data, err := blob.Marshal(bin, blob.CompressionZSTD)
	require.NoError(t, err)
	got, err := blob.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestCheckTagsAreLongEnough(t *testing.T) {
	bin := build(t, testInput(tagged("walk", 5, 1)))
	loco := bin.TypeByName(testutil.LocomotionType.Name)

	assert.NoError(t, CheckTagsAreLongEnough(bin, nil))
	err := CheckTagsAreLongEnough(bin, []blob.TypeID{loco})
	assert.ErrorIs(t, err, ErrTagTooShort)

	bin.TimeHorizon = 5.0 / 30
	assert.NoError(t, CheckTagsAreLongEnough(bin, []blob.TypeID{loco}))
}

func TestInputValidate(t *testing.T) {
	in := testInput(walk("", 10, 1), tagged("walk", 10, 1))
	in.Types = nil

	err := in.Validate()
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, anim.ErrInvalidClip)
}

func TestConfig_HorizonFrames(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30, cfg.HorizonFrames())
	cfg.TimeHorizon = 0.2
	assert.Equal(t, 6, cfg.HorizonFrames())
	cfg.TimeHorizon = 0.21
	assert.Equal(t, 7, cfg.HorizonFrames())
}
