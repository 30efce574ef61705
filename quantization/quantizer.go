package quantization

import (
	"math"
)

const minRange = 1e-6

// Quantizer is an 8-bit linear encoder for a scalar magnitude over
// [Minimum, Minimum+Range].
type Quantizer struct {
	Minimum float64
	Range   float64
}

// NewQuantizer derives the encoding range from the observed values.
func NewQuantizer(values []float64) Quantizer {
	if len(values) == 0 {
		return Quantizer{Range: 1}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	return Quantizer{Minimum: lo, Range: math.Max(hi-lo, minRange)}
}

// Normalize maps v into [0,1].
func (q Quantizer) Normalize(v float64) float64 {
	return clamp01((v - q.Minimum) / q.Range)
}

// InverseNormalize maps a value in [0,1] back into the quantizer range.
func (q Quantizer) InverseNormalize(n float64) float64 {
	return q.Minimum + q.Range*n
}

// Encode quantizes v to the nearest of 256 levels. Rounding rather than
// truncating keeps the decode error within half a level.
func (q Quantizer) Encode(v float64) byte {
	return byte(q.Normalize(v)*255 + 0.5)
}

// Decode reconstructs the value of a level.
func (q Quantizer) Decode(b byte) float64 {
	return q.InverseNormalize(float64(b) / 255)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
