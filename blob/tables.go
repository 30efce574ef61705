package blob

import (
	"github.com/hupe1980/motiondb/quantization"
	"gonum.org/v1/gonum/spatial/r3"
)

// Range is a half-open run of frames [First, First+NumFrames).
type Range struct {
	First     uint32
	NumFrames uint32
}

// End returns the first frame past the range.
func (r Range) End() uint32 { return r.First + r.NumFrames }

// Contains reports whether frame lies in the range.
func (r Range) Contains(frame uint32) bool {
	return frame >= r.First && frame < r.End()
}

// Joint is a rig joint. Parent is -1 for the trajectory joint.
type Joint struct {
	Name   StringID
	Parent int32
}

// Segment is a contiguous run of destination frames that originates from one
// coalesced tagged region of a clip.
type Segment struct {
	Clip        StringID
	Source      Range
	Destination Range

	TagStart      TagID
	NumTags       uint32
	MarkerStart   MarkerID
	NumMarkers    uint32
	IntervalStart IntervalID
	NumIntervals  uint32

	Prev SegmentID
	Next SegmentID
}

// NumFrames returns the number of destination frames.
func (s Segment) NumFrames() uint32 { return s.Destination.NumFrames }

// Tag attaches a trait to a segment-relative frame range.
type Tag struct {
	Segment SegmentID
	Trait   TraitID
	Range   Range
}

// Marker attaches a trait to a single segment-relative frame.
type Marker struct {
	Segment SegmentID
	Trait   TraitID
	Frame   uint32
}

// Interval is a maximal segment-relative frame range with a constant set of
// active tags.
type Interval struct {
	Segment  SegmentID
	Range    Range
	TagList  TagListID
	CodeBook CodeBookID
	// FragmentOffset is the index of the first fragment of this interval in
	// the encodings of its codebook.
	FragmentOffset uint32
}

// TagList is a run of TagIndices.
type TagList struct {
	Start   uint32
	NumTags uint32
}

// Trait is a payload instance.
type Trait struct {
	Type          TypeID
	PayloadOffset uint32
}

// TypeField is a field of a payload type.
type TypeField struct {
	Name StringID
	Kind uint8
}

// Type is a registered payload kind.
type Type struct {
	Name       StringID
	Hash       uint64
	NumBytes   uint32
	FieldStart uint32
	NumFields  uint32
}

// MetricJoint is a resolved metric joint.
type MetricJoint struct {
	Name  StringID
	Index uint32
}

// Metric describes how fragments are sampled for the codebooks it owns.
type Metric struct {
	Name      StringID
	TraitType TypeID

	JointStart uint32
	NumJoints  uint32

	NumPoseSamples uint32
	PoseTimeSpan   float64

	NumTrajectorySamples    uint32
	TrajectorySampleRange   float64
	TrajectoryDisplacements bool
}

// CodeBook is the compressed fragment index of all intervals that share a
// metric and a trait.
type CodeBook struct {
	Metric        MetricID
	Trait         TraitID
	IntervalStart uint32
	NumIntervals  uint32
	NumFragments  uint32

	Pose       Encoding
	Trajectory Encoding
}

// Encoding holds the product-quantized features of one fragment kind.
//
// Features are grouped as quantized, normalized then transformed. Every
// fragment has a code row of NumQuantized magnitude bytes followed by one
// centroid code per feature.
type Encoding struct {
	NumFragments   uint32
	NumQuantized   uint32
	NumNormalized  uint32
	NumTransformed uint32

	Codes         []byte
	Centroids     []r3.Vec
	BoundingBoxes []quantization.BoundingBox
	Quantizers    []quantization.Quantizer
}
