package blob

import (
	"math"

	"github.com/hupe1980/motiondb/quantization"
	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// FeatureKind is the group a feature belongs to.
type FeatureKind uint8

const (
	// FeatureQuantized features carry a magnitude and a direction.
	FeatureQuantized FeatureKind = iota
	// FeatureNormalized features are pure directions.
	FeatureNormalized
	// FeatureTransformed features are positions normalized by a bounding box.
	FeatureTransformed
)

// NumFeatures returns the number of 3-vector features per fragment.
func (e *Encoding) NumFeatures() int {
	return int(e.NumQuantized + e.NumNormalized + e.NumTransformed)
}

// NumFeaturesFlattened returns the length of a fragment code row.
func (e *Encoding) NumFeaturesFlattened() int {
	return e.NumFeatures() + int(e.NumQuantized)
}

// Kind returns the group of a feature.
func (e *Encoding) Kind(feature int) FeatureKind {
	switch {
	case feature < int(e.NumQuantized):
		return FeatureQuantized
	case feature < int(e.NumQuantized+e.NumNormalized):
		return FeatureNormalized
	default:
		return FeatureTransformed
	}
}

// FragmentCodes returns the code row of a fragment.
func (e *Encoding) FragmentCodes(fragment int) ([]byte, bool) {
	n := e.NumFeaturesFlattened()
	if fragment < 0 || fragment >= int(e.NumFragments) || (fragment+1)*n > len(e.Codes) {
		return nil, false
	}
	return e.Codes[fragment*n : (fragment+1)*n], true
}

// Centroid returns a centroid of a feature.
func (e *Encoding) Centroid(feature int, code byte) r3.Vec {
	return e.Centroids[feature*quantization.NumCentroids+int(code)]
}

// DecodeFeatures reconstructs normalized-space features from a code row.
// Quantized features are the centroid direction scaled by the normalized
// magnitude; other features are the centroid itself.
func (e *Encoding) DecodeFeatures(dst []r3.Vec, codes []byte) {
	nq := int(e.NumQuantized)
	for f := 0; f < e.NumFeatures(); f++ {
		c := e.Centroid(f, codes[nq+f])
		if f < nq {
			dst[f] = r3.Scale(float64(codes[f])/255, xform.SafeUnit(c))
			continue
		}
		dst[f] = c
	}
}

// Normalize maps raw features into normalized space.
func (e *Encoding) Normalize(dst, src []r3.Vec) {
	for f := range src[:e.NumFeatures()] {
		dst[f] = e.normalizeFeature(f, src[f])
	}
}

func (e *Encoding) normalizeFeature(f int, v r3.Vec) r3.Vec {
	switch e.Kind(f) {
	case FeatureQuantized:
		length := r3.Norm(v)
		if length == 0 {
			return r3.Vec{}
		}
		return r3.Scale(e.Quantizers[f].Normalize(length)/length, v)
	case FeatureNormalized:
		return xform.SafeUnit(v)
	default:
		return e.BoundingBoxes[f-int(e.NumQuantized+e.NumNormalized)].Normalize(v)
	}
}

// InverseNormalize maps normalized-space features back to raw features.
func (e *Encoding) InverseNormalize(dst, src []r3.Vec) {
	for f := range src[:e.NumFeatures()] {
		dst[f] = e.inverseNormalizeFeature(f, src[f])
	}
}

func (e *Encoding) inverseNormalizeFeature(f int, v r3.Vec) r3.Vec {
	switch e.Kind(f) {
	case FeatureQuantized:
		length := r3.Norm(v)
		if length == 0 {
			return r3.Vec{}
		}
		return r3.Scale(e.Quantizers[f].InverseNormalize(length)/length, v)
	case FeatureNormalized:
		return v
	default:
		return e.BoundingBoxes[f-int(e.NumQuantized+e.NumNormalized)].InverseNormalize(v)
	}
}

// FeatureDeviation returns the average per-feature deviation of two raw
// fragments. Identical fragments have a deviation of exactly zero; typical
// values lie in [0,1].
func (e *Encoding) FeatureDeviation(a, b []r3.Vec) float64 {
	n := e.NumFeatures()
	if n == 0 || len(a) < n || len(b) < n {
		return math.Inf(1)
	}

	var sum float64
	for f := 0; f < n; f++ {
		na := e.normalizeFeature(f, a[f])
		nb := e.normalizeFeature(f, b[f])

		switch e.Kind(f) {
		case FeatureQuantized:
			sum += math.Abs(r3.Norm(na)-r3.Norm(nb)) + directionDeviation(na, nb)
		case FeatureNormalized:
			sum += directionDeviation(na, nb)
		default:
			box := e.BoundingBoxes[f-int(e.NumQuantized+e.NumNormalized)]
			sum += r3.Norm(r3.Sub(na, nb)) * box.InverseDiagonal
		}
	}
	return sum / float64(n)
}

func directionDeviation(a, b r3.Vec) float64 {
	if a == b {
		return 0
	}
	return 0.5 - 0.5*r3.Dot(xform.SafeUnit(a), xform.SafeUnit(b))
}
