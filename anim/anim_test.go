package anim

import (
	"testing"

	"github.com/hupe1980/motiondb/xform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testRig() Rig {
	return Rig{Joints: []Joint{
		{Name: "root", Parent: -1},
		{Name: "hips", Parent: 0},
		{Name: "spine", Parent: 1},
	}}
}

func TestRig(t *testing.T) {
	rig := testRig()
	require.NoError(t, rig.Validate())
	assert.Equal(t, 2, rig.JointIndex("spine"))
	assert.Equal(t, -1, rig.JointIndex("head"))

	bad := Rig{Joints: []Joint{{Name: "root", Parent: -1}, {Name: "a", Parent: 2}, {Name: "b", Parent: 0}}}
	assert.Error(t, bad.Validate())
	assert.Error(t, Rig{}.Validate())
}

func TestClip_Validate(t *testing.T) {
	rig := testRig()
	c := &Clip{Name: "walk", SampleRate: 30, NumFrames: 2, Frames: make([]xform.Transform, 6)}
	require.NoError(t, c.Validate(rig))
	assert.InDelta(t, 2.0/30, c.Duration(), 1e-12)

	c.Frames = c.Frames[:5]
	assert.ErrorIs(t, c.Validate(rig), ErrInvalidClip)
}

func TestClip_SamplePose(t *testing.T) {
	c := &Clip{
		Name:       "move",
		SampleRate: 30,
		NumFrames:  2,
		Frames: []xform.Transform{
			xform.Translation(r3.Vec{}),
			xform.Translation(r3.Vec{X: 2}),
		},
	}

	dst := make([]xform.Transform, 1)
	c.SamplePose(dst, 0.25)
	assert.InDelta(t, 0.5, dst[0].Position.X, 1e-12)

	c.SamplePose(dst, 5)
	assert.Equal(t, 2.0, dst[0].Position.X)

	c.SamplePose(dst, -1)
	assert.Equal(t, 0.0, dst[0].Position.X)
}

func TestCharacterSpace(t *testing.T) {
	rig := testRig()
	local := []xform.Transform{
		xform.Translation(r3.Vec{X: 100}),
		xform.Translation(r3.Vec{Y: 1}),
		xform.Translation(r3.Vec{Y: 0.5}),
	}

	dst := make([]xform.Transform, 3)
	CharacterSpace(rig, local, dst)

	assert.Equal(t, r3.Vec{}, dst[0].Position)
	assert.InDelta(t, 1, dst[1].Position.Y, 1e-12)
	assert.InDelta(t, 1.5, dst[2].Position.Y, 1e-12)
	assert.InDelta(t, 0, dst[2].Position.X, 1e-12)
}
