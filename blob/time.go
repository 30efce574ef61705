package blob

import (
	"math"

	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// TimeIndex addresses a destination frame of a segment.
type TimeIndex struct {
	Segment SegmentID
	Frame   uint32
}

// InvalidTimeIndex is returned for unresolvable time queries.
var InvalidTimeIndex = TimeIndex{Segment: InvalidSegmentID}

// IsValid reports whether the time index refers to a segment.
func (t TimeIndex) IsValid() bool { return t.Segment.IsValid() }

// SamplingTime is a time index with a fractional offset in [0,1) towards the
// next frame.
type SamplingTime struct {
	TimeIndex
	Theta float64
}

// InvalidSamplingTime is returned for unresolvable sampling times.
var InvalidSamplingTime = SamplingTime{TimeIndex: InvalidTimeIndex}

// AdvanceResult is the outcome of Advance.
type AdvanceResult struct {
	Time SamplingTime
	// Delta is the root motion from the start time to Time, expressed in the
	// root frame at the start time.
	Delta xform.Transform
	// Crossed reports whether a segment boundary was crossed.
	Crossed bool
}

// IsValidTimeIndex reports whether t addresses an existing frame.
func (b *Binary) IsValidTimeIndex(t TimeIndex) bool {
	s, ok := b.Segment(t.Segment)
	return ok && t.Frame < s.NumFrames()
}

// IsValidSamplingTime reports whether t addresses an existing frame with a
// theta in [0,1).
func (b *Binary) IsValidSamplingTime(t SamplingTime) bool {
	return b.IsValidTimeIndex(t.TimeIndex) && t.Theta >= 0 && t.Theta < 1 && !math.IsNaN(t.Theta)
}

// GlobalFrame returns the destination frame index of t, or -1.
func (b *Binary) GlobalFrame(t TimeIndex) int {
	if !b.IsValidTimeIndex(t) {
		return -1
	}
	return int(b.Segments[t.Segment].Destination.First + t.Frame)
}

// TimeIndexAt maps a destination frame to its time index.
func (b *Binary) TimeIndexAt(globalFrame int) TimeIndex {
	if globalFrame < 0 {
		return InvalidTimeIndex
	}
	for i, s := range b.Segments {
		if s.Destination.Contains(uint32(globalFrame)) {
			return TimeIndex{Segment: SegmentID(i), Frame: uint32(globalFrame) - s.Destination.First}
		}
	}
	return InvalidTimeIndex
}

// JointTransform returns the local transform of joint at t.
func (b *Binary) JointTransform(t TimeIndex, joint int) (xform.Transform, bool) {
	g := b.GlobalFrame(t)
	if g < 0 || joint < 0 || joint >= len(b.Joints) {
		return xform.Transform{}, false
	}
	return b.Transforms[g*len(b.Joints)+joint], true
}

func (b *Binary) rootAt(seg SegmentID, frame uint32) xform.Transform {
	s := b.Segments[seg]
	return b.Transforms[int(s.Destination.First+frame)*len(b.Joints)]
}

// gap is the root step that continues a segment past its last frame. It
// repeats the last root step of the segment, or is the identity for single
// frame segments.
func (b *Binary) gap(seg SegmentID) xform.Transform {
	s := b.Segments[seg]
	last := s.NumFrames() - 1
	if last == 0 {
		return xform.Identity()
	}
	return xform.Delta(b.rootAt(seg, last-1), b.rootAt(seg, last))
}

// trajectory returns the root transform at a sampling time. Between the last
// frame and the frame beyond it, the gap step is interpolated.
func (b *Binary) trajectory(t SamplingTime) xform.Transform {
	s := b.Segments[t.Segment]
	root := b.rootAt(t.Segment, t.Frame)
	if t.Theta == 0 {
		return root
	}
	if t.Frame+1 < s.NumFrames() {
		return xform.Interpolate(root, b.rootAt(t.Segment, t.Frame+1), t.Theta)
	}
	return root.Mul(xform.Interpolate(xform.Identity(), b.gap(t.Segment), t.Theta))
}

// GetTrajectoryTransform returns the world-space trajectory transform at t.
func (b *Binary) GetTrajectoryTransform(t SamplingTime) (xform.Transform, bool) {
	if !b.IsValidSamplingTime(t) || len(b.Joints) == 0 {
		return xform.Transform{}, false
	}
	return b.trajectory(t), true
}

// GetJointTransform returns the interpolated local transform of joint at t.
func (b *Binary) GetJointTransform(t SamplingTime, joint int) (xform.Transform, bool) {
	if joint == 0 {
		return b.GetTrajectoryTransform(t)
	}
	if !b.IsValidSamplingTime(t) {
		return xform.Transform{}, false
	}
	a, ok := b.JointTransform(t.TimeIndex, joint)
	if !ok {
		return xform.Transform{}, false
	}
	s := b.Segments[t.Segment]
	if t.Theta == 0 || t.Frame+1 >= s.NumFrames() {
		return a, true
	}
	next, _ := b.JointTransform(TimeIndex{Segment: t.Segment, Frame: t.Frame + 1}, joint)
	return xform.Interpolate(a, next, t.Theta), true
}

// GetCharacterSpaceJointTransform composes the local transforms from joint up
// to the trajectory joint, excluding it.
func (b *Binary) GetCharacterSpaceJointTransform(t SamplingTime, joint int) (xform.Transform, bool) {
	if joint < 0 || joint >= len(b.Joints) || !b.IsValidSamplingTime(t) {
		return xform.Transform{}, false
	}
	result := xform.Identity()
	for j := joint; j > 0; j = int(b.Joints[j].Parent) {
		local, ok := b.GetJointTransform(t, j)
		if !ok {
			return xform.Transform{}, false
		}
		result = local.Mul(result)
	}
	return result, true
}

// GetCharacterSpaceJointPosition returns the position of joint relative to
// the trajectory joint at t.
func (b *Binary) GetCharacterSpaceJointPosition(t SamplingTime, joint int) (r3.Vec, bool) {
	cs, ok := b.GetCharacterSpaceJointTransform(t, joint)
	return cs.Position, ok
}

// Advance moves t by deltaTime seconds.
//
// Inside a segment the time is interpolated. Moving past the last frame of a
// segment with a next link enters the link through the gap step; moving
// before the first frame of a segment with a previous link enters the gap of
// the previous segment from its end. Without a link the time clamps to the
// boundary frame with a zero theta.
func (b *Binary) Advance(t SamplingTime, deltaTime float64) AdvanceResult {
	if !b.IsValidSamplingTime(t) || math.IsNaN(deltaTime) || math.IsInf(deltaTime, 0) || len(b.Joints) == 0 {
		return AdvanceResult{Time: InvalidSamplingTime, Delta: xform.Identity()}
	}

	seg := t.Segment
	start := b.trajectory(t)
	target := float64(t.Frame) + t.Theta + deltaTime*b.SampleRate
	delta := xform.Identity()
	crossed := false

	var (
		result SamplingTime
		loop   linkCycle
	)
	for {
		s := b.Segments[seg]
		last := float64(s.NumFrames() - 1)

		if target > last {
			if !s.Next.IsValid() {
				result = SamplingTime{TimeIndex: TimeIndex{Segment: seg, Frame: uint32(last)}}
				break
			}
			if target < last+1 {
				result = SamplingTime{TimeIndex: TimeIndex{Segment: seg, Frame: uint32(last)}, Theta: gapTheta(target - last)}
				break
			}
			end := b.rootAt(seg, uint32(last)).Mul(b.gap(seg))
			delta = delta.Mul(xform.Delta(start, end))
			seg = s.Next
			start = b.rootAt(seg, 0)
			target -= last + 1
			crossed = true
			loop.enter(seg, &delta, &target)
			continue
		}

		if target < 0 {
			if !s.Prev.IsValid() {
				result = SamplingTime{TimeIndex: TimeIndex{Segment: seg}}
				break
			}
			delta = delta.Mul(xform.Delta(start, b.rootAt(seg, 0)))
			prev := s.Prev
			lp := b.Segments[prev].NumFrames() - 1
			start = b.rootAt(prev, lp).Mul(b.gap(prev))
			seg = prev
			target += float64(lp) + 1
			crossed = true
			if target >= float64(lp) {
				result = SamplingTime{TimeIndex: TimeIndex{Segment: seg, Frame: lp}, Theta: gapTheta(target - float64(lp))}
				break
			}
			loop.enter(seg, &delta, &target)
			continue
		}

		frame := math.Floor(target)
		result = SamplingTime{TimeIndex: TimeIndex{Segment: seg, Frame: uint32(frame)}, Theta: target - frame}
		break
	}

	delta = delta.Mul(xform.Delta(start, b.trajectory(result)))
	return AdvanceResult{Time: result, Delta: delta, Crossed: crossed}
}

// linkCycle skips whole turns of a cycle of boundary links, so that Advance
// over a looping clip takes time logarithmic in deltaTime.
type linkCycle struct {
	entries map[SegmentID]cycleEntry
	skipped bool
}

type cycleEntry struct {
	delta  xform.Transform
	target float64
}

// enter records the state on entering seg through a link. On the second
// entry the period of the cycle is known and all but the last whole turns
// are applied at once.
func (c *linkCycle) enter(seg SegmentID, delta *xform.Transform, target *float64) {
	if c.skipped {
		return
	}
	first, ok := c.entries[seg]
	if !ok {
		if c.entries == nil {
			c.entries = make(map[SegmentID]cycleEntry)
		}
		c.entries[seg] = cycleEntry{delta: *delta, target: *target}
		return
	}
	c.skipped = true

	// period is positive moving forward and negative moving backward.
	period := first.target - *target
	turns := math.Floor(*target/period) - 1
	if turns < 1 {
		return
	}
	turn := first.delta.Inverse().Mul(*delta)
	*delta = delta.Mul(powTransform(turn, uint64(turns)))
	*target -= turns * period
}

// powTransform composes t with itself n times.
func powTransform(t xform.Transform, n uint64) xform.Transform {
	result := xform.Identity()
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(t)
		}
		t = t.Mul(t)
		n >>= 1
	}
	return result
}

// GetIntervalAt returns the interval covering t.
func (b *Binary) GetIntervalAt(t TimeIndex) IntervalID {
	s, ok := b.Segment(t.Segment)
	if !ok || t.Frame >= s.NumFrames() {
		return InvalidIntervalID
	}
	for i := uint32(0); i < s.NumIntervals; i++ {
		id := IntervalID(uint32(s.IntervalStart) + i)
		iv, ok := b.Interval(id)
		if ok && iv.Range.Contains(t.Frame) {
			return id
		}
	}
	return InvalidIntervalID
}

// GetCodeBookAt returns the codebook covering t.
func (b *Binary) GetCodeBookAt(t TimeIndex) CodeBookID {
	iv, ok := b.Interval(b.GetIntervalAt(t))
	if !ok {
		return InvalidCodeBookID
	}
	return iv.CodeBook
}

// FragmentIndex returns the index of the fragment for t within the encodings
// of its codebook.
func (b *Binary) FragmentIndex(t TimeIndex) (CodeBookID, int, bool) {
	iv, ok := b.Interval(b.GetIntervalAt(t))
	if !ok || !iv.CodeBook.IsValid() {
		return InvalidCodeBookID, -1, false
	}
	return iv.CodeBook, int(iv.FragmentOffset + t.Frame - iv.Range.First), true
}

// TimeIndexOfFragment is the inverse of FragmentIndex.
func (b *Binary) TimeIndexOfFragment(cb CodeBookID, fragment int) TimeIndex {
	if fragment < 0 {
		return InvalidTimeIndex
	}
	for _, id := range b.CodeBookIntervalsOf(cb) {
		iv := b.Intervals[id]
		off := int(iv.FragmentOffset)
		if fragment >= off && fragment < off+int(iv.Range.NumFrames) {
			return TimeIndex{Segment: iv.Segment, Frame: iv.Range.First + uint32(fragment-off)}
		}
	}
	return InvalidTimeIndex
}

// TagListContains reports whether a tag list contains a tag with the given
// trait.
func (b *Binary) TagListContains(id TagListID, trait TraitID) bool {
	tags, ok := b.TagList(id)
	if !ok {
		return false
	}
	for _, tag := range tags {
		if t, ok := b.Tag(tag); ok && t.Trait == trait {
			return true
		}
	}
	return false
}

// gapTheta keeps rounding from producing a theta of 1.
func gapTheta(theta float64) float64 {
	return math.Min(theta, math.Nextafter(1, 0))
}
