// Package anim defines the build input of the motion database: a rig and a
// set of annotated animation clips.
package anim

import (
	"errors"
	"fmt"

	"github.com/hupe1980/motiondb/trait"
	"github.com/hupe1980/motiondb/xform"
)

// ErrInvalidClip is returned for clips that cannot be sampled.
var ErrInvalidClip = errors.New("anim: invalid clip")

// Joint is a node of the rig hierarchy. Parent is -1 for the root.
type Joint struct {
	Name   string `json:"name" yaml:"name"`
	Parent int    `json:"parent" yaml:"parent"`
}

// Rig is the joint hierarchy shared by all clips of a build. Joint 0 is the
// trajectory joint; it carries root motion and is the parent of the skeleton.
type Rig struct {
	Joints []Joint `json:"joints" yaml:"joints"`
}

// JointIndex returns the index of the named joint or -1.
func (r Rig) JointIndex(name string) int {
	for i, j := range r.Joints {
		if j.Name == name {
			return i
		}
	}
	return -1
}

// NumJoints returns the number of joints.
func (r Rig) NumJoints() int { return len(r.Joints) }

// Validate checks that parents precede their children.
func (r Rig) Validate() error {
	if len(r.Joints) == 0 {
		return errors.New("anim: rig has no joints")
	}
	if r.Joints[0].Parent != -1 {
		return errors.New("anim: joint 0 must be the root")
	}
	for i, j := range r.Joints[1:] {
		if j.Parent < 0 || j.Parent > i {
			return fmt.Errorf("anim: joint %q has invalid parent %d", j.Name, j.Parent)
		}
	}
	return nil
}

// Tag annotates a time range of a clip with a trait.
type Tag struct {
	Start    float64
	Duration float64
	Trait    trait.Value
}

// Marker annotates a single instant of a clip with a trait.
type Marker struct {
	Time  float64
	Trait trait.Value
}

// Clip is a uniformly sampled animation with annotations. Frames hold the
// local joint transforms of every frame, frame major.
type Clip struct {
	Name       string
	SampleRate float64
	NumFrames  int
	Frames     []xform.Transform
	Tags       []Tag
	Markers    []Marker

	// PreBoundaryClip names the clip that precedes this one in time. When set,
	// the first segment of this clip links back to its last segment.
	PreBoundaryClip string
	// PostBoundaryClip names the clip that follows this one in time. When
	// set, the last segment of this clip links to its first segment.
	PostBoundaryClip string
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.NumFrames) / c.SampleRate
}

// Validate checks the clip against the rig.
func (c *Clip) Validate(rig Rig) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidClip)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: %s: sample rate %v", ErrInvalidClip, c.Name, c.SampleRate)
	case c.NumFrames <= 0:
		return fmt.Errorf("%w: %s: no frames", ErrInvalidClip, c.Name)
	case len(c.Frames) != c.NumFrames*rig.NumJoints():
		return fmt.Errorf("%w: %s: %d transforms, want %d", ErrInvalidClip, c.Name, len(c.Frames), c.NumFrames*rig.NumJoints())
	}
	return nil
}

// Pose returns the local transforms of a frame.
func (c *Clip) Pose(frame, numJoints int) []xform.Transform {
	return c.Frames[frame*numJoints : (frame+1)*numJoints]
}

// SamplePose interpolates the pose at a fractional source frame into dst.
// Positions are blended linearly and rotations spherically.
func (c *Clip) SamplePose(dst []xform.Transform, frame float64) {
	numJoints := len(dst)
	last := c.NumFrames - 1
	if frame <= 0 {
		copy(dst, c.Pose(0, numJoints))
		return
	}
	if frame >= float64(last) {
		copy(dst, c.Pose(last, numJoints))
		return
	}

	f0 := int(frame)
	theta := frame - float64(f0)
	a := c.Pose(f0, numJoints)
	b := c.Pose(f0+1, numJoints)
	for j := range dst {
		dst[j] = xform.Interpolate(a[j], b[j], theta)
	}
}

// CharacterSpace composes local transforms into transforms relative to the
// trajectory joint. The trajectory joint itself maps to the identity.
func CharacterSpace(rig Rig, local []xform.Transform, dst []xform.Transform) {
	dst[0] = xform.Identity()
	for j := 1; j < len(rig.Joints); j++ {
		p := rig.Joints[j].Parent
		if p <= 0 {
			dst[j] = local[j]
			continue
		}
		dst[j] = dst[p].Mul(local[j])
	}
}
