package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Vec(1)
	rng.Reset()
	v2 := rng.Vec(1)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestGaussianPoints(t *testing.T) {
	rng := NewRNG(4711)

	points := rng.GaussianPoints(100, r3.Vec{X: 1, Y: 0, Z: 2})

	assert.Len(t, points, 100)
	for _, p := range points {
		assert.Zero(t, p.Y)
	}
}

func TestWalkClip(t *testing.T) {
	clip := WalkClip(ClipOptions{Name: "walk", NumFrames: 31, Speed: 3})
	require.NoError(t, clip.Validate(Rig()))

	assert.InDelta(t, 31.0/30, clip.Duration(), 1e-12)

	// The root covers Speed/rate per frame along +Z.
	last := clip.Pose(30, Rig().NumJoints())[JointRoot]
	assert.InDelta(t, 3.0, last.Position.Z, 1e-9)
	assert.InDelta(t, 0.0, last.Position.X, 1e-9)
}

func TestWalkClip_Turning(t *testing.T) {
	clip := WalkClip(ClipOptions{Name: "turn", NumFrames: 10, Speed: 1, TurnRate: 1})

	last := clip.Pose(9, Rig().NumJoints())[JointRoot]
	assert.Greater(t, last.Position.X, 0.0)
}

func TestTagAll(t *testing.T) {
	clip := WalkClip(ClipOptions{Name: "walk", NumFrames: 30, Speed: 1})
	TagAll(&clip, Locomotion(1))
	TagFrames(&clip, 10, 20, Idle())

	require.Len(t, clip.Tags, 2)
	assert.InDelta(t, 1.0, clip.Tags[0].Duration, 1e-12)
	assert.InDelta(t, 10.0/30, clip.Tags[1].Start, 1e-12)

	_, err := Registry().Check(clip.Tags[0].Trait)
	assert.NoError(t, err)
}
