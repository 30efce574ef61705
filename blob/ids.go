package blob

import (
	"math"
	"strconv"
)

// Index newtypes address rows of the tables of a Binary. The zero value is
// a valid index; the Invalid constants mark absent references.
type (
	// SegmentID indexes a segment.
	SegmentID uint32
	// TagID indexes a tag.
	TagID uint32
	// MarkerID indexes a marker.
	MarkerID uint32
	// IntervalID indexes an interval.
	IntervalID uint32
	// TagListID indexes a tag list.
	TagListID uint32
	// TraitID indexes a trait.
	TraitID uint32
	// TypeID indexes a payload type.
	TypeID uint32
	// MetricID indexes a metric.
	MetricID uint32
	// CodeBookID indexes a codebook.
	CodeBookID uint32
	// StringID indexes an interned string.
	StringID uint32
)

const (
	InvalidSegmentID  SegmentID  = math.MaxUint32
	InvalidTagID      TagID      = math.MaxUint32
	InvalidMarkerID   MarkerID   = math.MaxUint32
	InvalidIntervalID IntervalID = math.MaxUint32
	InvalidTagListID  TagListID  = math.MaxUint32
	InvalidTraitID    TraitID    = math.MaxUint32
	InvalidTypeID     TypeID     = math.MaxUint32
	InvalidMetricID   MetricID   = math.MaxUint32
	InvalidCodeBookID CodeBookID = math.MaxUint32
	InvalidStringID   StringID   = math.MaxUint32
)

// IsValid reports whether id is not InvalidSegmentID.
func (id SegmentID) IsValid() bool { return id != InvalidSegmentID }

func (id SegmentID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidTagID.
func (id TagID) IsValid() bool { return id != InvalidTagID }

func (id TagID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidMarkerID.
func (id MarkerID) IsValid() bool { return id != InvalidMarkerID }

func (id MarkerID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidIntervalID.
func (id IntervalID) IsValid() bool { return id != InvalidIntervalID }

func (id IntervalID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidTagListID.
func (id TagListID) IsValid() bool { return id != InvalidTagListID }

func (id TagListID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidTraitID.
func (id TraitID) IsValid() bool { return id != InvalidTraitID }

func (id TraitID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidTypeID.
func (id TypeID) IsValid() bool { return id != InvalidTypeID }

func (id TypeID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidMetricID.
func (id MetricID) IsValid() bool { return id != InvalidMetricID }

func (id MetricID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidCodeBookID.
func (id CodeBookID) IsValid() bool { return id != InvalidCodeBookID }

func (id CodeBookID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether id is not InvalidStringID.
func (id StringID) IsValid() bool { return id != InvalidStringID }

func (id StringID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(id), 10)
}
