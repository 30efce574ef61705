package fragment

import (
	"github.com/hupe1980/motiondb/blob"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fragment is a set of raw features.
type Fragment struct {
	Features []r3.Vec
}

// Invalid is returned when no fragment can be built for a time.
var Invalid = Fragment{}

// IsValid reports whether the fragment carries features.
func (f Fragment) IsValid() bool { return f.Features != nil }

// NumFeatures returns the number of 3-vector features.
func (f Fragment) NumFeatures() int { return len(f.Features) }

// Layout counts the features of each group.
type Layout struct {
	NumQuantized   int
	NumNormalized  int
	NumTransformed int
}

// NumFeatures returns the total number of features.
func (l Layout) NumFeatures() int {
	return l.NumQuantized + l.NumNormalized + l.NumTransformed
}

// Matches reports whether an encoding was built for this layout.
func (l Layout) Matches(e *blob.Encoding) bool {
	return int(e.NumQuantized) == l.NumQuantized &&
		int(e.NumNormalized) == l.NumNormalized &&
		int(e.NumTransformed) == l.NumTransformed
}

// Factory creates fragments of one layout.
type Factory interface {
	Layout() Layout
	// CreateInto writes the fragment at t into dst, which must hold
	// Layout().NumFeatures() vectors. It reports false for invalid times.
	CreateInto(dst []r3.Vec, b *blob.Binary, t blob.SamplingTime) bool
	// CreateFromBufferInto writes the fragment at time seconds of buf.
	CreateFromBufferInto(dst []r3.Vec, buf *TransformBuffer, time float64) bool
}

// Create builds the fragment at t, or Invalid.
func Create(f Factory, b *blob.Binary, t blob.SamplingTime) Fragment {
	dst := make([]r3.Vec, f.Layout().NumFeatures())
	if !f.CreateInto(dst, b, t) {
		return Invalid
	}
	return Fragment{Features: dst}
}

// CreateFromBuffer builds the fragment at time seconds of buf, or Invalid.
func CreateFromBuffer(f Factory, buf *TransformBuffer, time float64) Fragment {
	dst := make([]r3.Vec, f.Layout().NumFeatures())
	if !f.CreateFromBufferInto(dst, buf, time) {
		return Invalid
	}
	return Fragment{Features: dst}
}

// Reconstruct decodes a stored fragment back into raw features.
func Reconstruct(e *blob.Encoding, fragment int) Fragment {
	codes, ok := e.FragmentCodes(fragment)
	if !ok {
		return Invalid
	}
	normalized := make([]r3.Vec, e.NumFeatures())
	e.DecodeFeatures(normalized, codes)

	raw := make([]r3.Vec, e.NumFeatures())
	e.InverseNormalize(raw, normalized)
	return Fragment{Features: raw}
}
