package fragment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/xform"
)

// ErrBufferOrder is returned when frames are appended out of time order.
var ErrBufferOrder = errors.New("fragment: frames must be appended in increasing time order")

// TransformBuffer holds a bounded history of character poses, used to build
// fragments for a character that is not playing back the database: the
// query side of motion matching. Each frame carries the world-space
// trajectory transform and the local transforms of the other joints.
//
// The buffer may also hold predicted frames past the present; sampling
// outside the stored time span clamps to the first or last frame.
type TransformBuffer struct {
	parents    []int
	sampleRate float64
	capacity   int

	times  []float64
	roots  []xform.Transform
	locals []xform.Transform // frame major, len(parents) per frame
}

// NewTransformBuffer creates a buffer for a rig given by its parent indices
// (-1 for the trajectory joint). sampleRate sets the finite difference step
// of velocities; capacity bounds the number of stored frames.
func NewTransformBuffer(parents []int, sampleRate float64, capacity int) *TransformBuffer {
	return &TransformBuffer{
		parents:    parents,
		sampleRate: sampleRate,
		capacity:   max(capacity, 1),
	}
}

// NewTransformBufferFor creates a buffer matching the rig and sample rate of
// a database.
func NewTransformBufferFor(b *blob.Binary, capacity int) *TransformBuffer {
	parents := make([]int, len(b.Joints))
	for i, j := range b.Joints {
		parents[i] = int(j.Parent)
	}
	return NewTransformBuffer(parents, b.SampleRate, capacity)
}

// Len returns the number of stored frames.
func (buf *TransformBuffer) Len() int { return len(buf.times) }

// NumJoints returns the number of joints per frame.
func (buf *TransformBuffer) NumJoints() int { return len(buf.parents) }

// Span returns the first and last stored time.
func (buf *TransformBuffer) Span() (float64, float64) {
	if len(buf.times) == 0 {
		return 0, 0
	}
	return buf.times[0], buf.times[len(buf.times)-1]
}

// Append adds a frame. locals holds the local transforms of all joints;
// the entry of the trajectory joint is ignored in favor of root. The oldest
// frame is dropped once the capacity is reached.
func (buf *TransformBuffer) Append(time float64, root xform.Transform, locals []xform.Transform) error {
	if len(locals) != len(buf.parents) {
		return fmt.Errorf("fragment: frame has %d joints, want %d", len(locals), len(buf.parents))
	}
	if n := len(buf.times); n > 0 && time <= buf.times[n-1] {
		return fmt.Errorf("%w: %v after %v", ErrBufferOrder, time, buf.times[n-1])
	}

	if len(buf.times) == buf.capacity {
		buf.times = buf.times[1:]
		buf.roots = buf.roots[1:]
		buf.locals = buf.locals[len(buf.parents):]
	}
	buf.times = append(buf.times, time)
	buf.roots = append(buf.roots, root)
	buf.locals = append(buf.locals, locals...)
	return nil
}

// Reset drops all frames.
func (buf *TransformBuffer) Reset() {
	buf.times = buf.times[:0]
	buf.roots = buf.roots[:0]
	buf.locals = buf.locals[:0]
}

func (buf *TransformBuffer) clamp(t float64) float64 {
	first, last := buf.Span()
	return min(max(t, first), last)
}

// locate returns the frame at or before t and the blend towards the next
// frame.
func (buf *TransformBuffer) locate(t float64) (int, float64) {
	i := sort.SearchFloat64s(buf.times, t)
	if i < len(buf.times) && buf.times[i] == t {
		return i, 0
	}
	if i == 0 {
		return 0, 0
	}
	if i == len(buf.times) {
		return i - 1, 0
	}
	return i - 1, (t - buf.times[i-1]) / (buf.times[i] - buf.times[i-1])
}

func (buf *TransformBuffer) rootAt(t float64) (xform.Transform, int) {
	f, theta := buf.locate(t)
	if theta == 0 {
		return buf.roots[f], f
	}
	return xform.Interpolate(buf.roots[f], buf.roots[f+1], theta), f
}

func (buf *TransformBuffer) localAt(f int, t float64, joint int) xform.Transform {
	n := len(buf.parents)
	a := buf.locals[f*n+joint]
	if f+1 >= len(buf.times) || t <= buf.times[f] {
		return a
	}
	theta := (t - buf.times[f]) / (buf.times[f+1] - buf.times[f])
	return xform.Interpolate(a, buf.locals[(f+1)*n+joint], theta)
}

func (buf *TransformBuffer) characterSpaceAt(f int, t float64, joint int) xform.Transform {
	result := xform.Identity()
	for j := joint; j > 0; j = buf.parents[j] {
		result = buf.localAt(f, t, j).Mul(result)
	}
	return result
}

func (buf *TransformBuffer) valid(t float64) bool {
	if len(buf.times) == 0 {
		return false
	}
	first, last := buf.Span()
	return t >= first && t <= last
}
