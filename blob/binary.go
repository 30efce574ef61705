package blob

import (
	"github.com/google/uuid"
	"github.com/hupe1980/motiondb/xform"
)

// Binary is the root of a motion database.
type Binary struct {
	SampleRate  float64
	TimeHorizon float64
	BuildID     uuid.UUID

	Strings []string

	Types      []Type
	TypeFields []TypeField
	Traits     []Trait
	Payloads   []byte

	Joints     []Joint
	Transforms []xform.Transform

	Segments   []Segment
	Tags       []Tag
	Markers    []Marker
	Intervals  []Interval
	TagLists   []TagList
	TagIndices []TagID

	Metrics           []Metric
	MetricJoints      []MetricJoint
	CodeBooks         []CodeBook
	CodeBookIntervals []IntervalID
}

// NumJoints returns the number of rig joints.
func (b *Binary) NumJoints() int { return len(b.Joints) }

// NumFrames returns the total number of destination frames.
func (b *Binary) NumFrames() int {
	if len(b.Joints) == 0 {
		return 0
	}
	return len(b.Transforms) / len(b.Joints)
}

// LookupString returns an interned string.
func (b *Binary) LookupString(id StringID) (string, bool) {
	if int64(id) >= int64(len(b.Strings)) {
		return "", false
	}
	return b.Strings[id], true
}

// StringOrEmpty returns an interned string or "" for invalid ids.
func (b *Binary) StringOrEmpty(id StringID) string {
	s, _ := b.LookupString(id)
	return s
}

// Segment returns a segment.
func (b *Binary) Segment(id SegmentID) (Segment, bool) {
	if int64(id) >= int64(len(b.Segments)) {
		return Segment{}, false
	}
	return b.Segments[id], true
}

// Tag returns a tag.
func (b *Binary) Tag(id TagID) (Tag, bool) {
	if int64(id) >= int64(len(b.Tags)) {
		return Tag{}, false
	}
	return b.Tags[id], true
}

// Marker returns a marker.
func (b *Binary) Marker(id MarkerID) (Marker, bool) {
	if int64(id) >= int64(len(b.Markers)) {
		return Marker{}, false
	}
	return b.Markers[id], true
}

// Interval returns an interval.
func (b *Binary) Interval(id IntervalID) (Interval, bool) {
	if int64(id) >= int64(len(b.Intervals)) {
		return Interval{}, false
	}
	return b.Intervals[id], true
}

// TagList returns the tag indices of a tag list.
func (b *Binary) TagList(id TagListID) ([]TagID, bool) {
	if int64(id) >= int64(len(b.TagLists)) {
		return nil, false
	}
	l := b.TagLists[id]
	if uint64(l.Start)+uint64(l.NumTags) > uint64(len(b.TagIndices)) {
		return nil, false
	}
	return b.TagIndices[l.Start : l.Start+l.NumTags], true
}

// Trait returns a trait and its payload bytes.
func (b *Binary) Trait(id TraitID) (Trait, []byte, bool) {
	if int64(id) >= int64(len(b.Traits)) {
		return Trait{}, nil, false
	}
	tr := b.Traits[id]
	typ, ok := b.Type(tr.Type)
	if !ok {
		return Trait{}, nil, false
	}
	end := uint64(tr.PayloadOffset) + uint64(typ.NumBytes)
	if end > uint64(len(b.Payloads)) {
		return Trait{}, nil, false
	}
	return tr, b.Payloads[tr.PayloadOffset:end], true
}

// Type returns a payload type.
func (b *Binary) Type(id TypeID) (Type, bool) {
	if int64(id) >= int64(len(b.Types)) {
		return Type{}, false
	}
	return b.Types[id], true
}

// TypeByName returns the id of the named payload type.
func (b *Binary) TypeByName(name string) TypeID {
	for i, t := range b.Types {
		if b.StringOrEmpty(t.Name) == name {
			return TypeID(i)
		}
	}
	return InvalidTypeID
}

// Fields returns the fields of a payload type.
func (b *Binary) Fields(id TypeID) []TypeField {
	t, ok := b.Type(id)
	if !ok || uint64(t.FieldStart)+uint64(t.NumFields) > uint64(len(b.TypeFields)) {
		return nil
	}
	return b.TypeFields[t.FieldStart : t.FieldStart+t.NumFields]
}

// Metric returns a metric.
func (b *Binary) Metric(id MetricID) (Metric, bool) {
	if int64(id) >= int64(len(b.Metrics)) {
		return Metric{}, false
	}
	return b.Metrics[id], true
}

// MetricJointsOf returns the resolved joints of a metric.
func (b *Binary) MetricJointsOf(id MetricID) []MetricJoint {
	m, ok := b.Metric(id)
	if !ok || uint64(m.JointStart)+uint64(m.NumJoints) > uint64(len(b.MetricJoints)) {
		return nil
	}
	return b.MetricJoints[m.JointStart : m.JointStart+m.NumJoints]
}

// CodeBook returns a codebook.
func (b *Binary) CodeBook(id CodeBookID) (*CodeBook, bool) {
	if int64(id) >= int64(len(b.CodeBooks)) {
		return nil, false
	}
	return &b.CodeBooks[id], true
}

// CodeBookIntervalsOf returns the intervals owned by a codebook.
func (b *Binary) CodeBookIntervalsOf(id CodeBookID) []IntervalID {
	cb, ok := b.CodeBook(id)
	if !ok || uint64(cb.IntervalStart)+uint64(cb.NumIntervals) > uint64(len(b.CodeBookIntervals)) {
		return nil
	}
	return b.CodeBookIntervals[cb.IntervalStart : cb.IntervalStart+cb.NumIntervals]
}

// SegmentTags returns the tags of a segment.
func (b *Binary) SegmentTags(id SegmentID) []Tag {
	s, ok := b.Segment(id)
	if !ok || s.NumTags == 0 || uint64(s.TagStart)+uint64(s.NumTags) > uint64(len(b.Tags)) {
		return nil
	}
	return b.Tags[s.TagStart : uint32(s.TagStart)+s.NumTags]
}

// SegmentMarkers returns the markers of a segment.
func (b *Binary) SegmentMarkers(id SegmentID) []Marker {
	s, ok := b.Segment(id)
	if !ok || s.NumMarkers == 0 || uint64(s.MarkerStart)+uint64(s.NumMarkers) > uint64(len(b.Markers)) {
		return nil
	}
	return b.Markers[s.MarkerStart : uint32(s.MarkerStart)+s.NumMarkers]
}

// SegmentIntervals returns the intervals of a segment.
func (b *Binary) SegmentIntervals(id SegmentID) []Interval {
	s, ok := b.Segment(id)
	if !ok || s.NumIntervals == 0 || uint64(s.IntervalStart)+uint64(s.NumIntervals) > uint64(len(b.Intervals)) {
		return nil
	}
	return b.Intervals[s.IntervalStart : uint32(s.IntervalStart)+s.NumIntervals]
}

// JointIndex returns the index of the named joint or -1.
func (b *Binary) JointIndex(name string) int {
	for i, j := range b.Joints {
		if b.StringOrEmpty(j.Name) == name {
			return i
		}
	}
	return -1
}

// SegmentByClip returns the first segment built from the named clip.
func (b *Binary) SegmentByClip(name string) SegmentID {
	for i, s := range b.Segments {
		if b.StringOrEmpty(s.Clip) == name {
			return SegmentID(i)
		}
	}
	return InvalidSegmentID
}
