package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/motiondb/xform"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestComputeBoundingBox(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	frame := xform.New(r3.Vec{X: 1, Y: -2, Z: 5}, xform.AxisAngle(r3.Vec{X: 1, Y: 1}, 0.7))

	points := make([]r3.Vec, 500)
	for i := range points {
		local := r3.Vec{
			X: (rng.Float64()*2 - 1) * 4,
			Y: (rng.Float64()*2 - 1) * 2,
			Z: (rng.Float64()*2 - 1) * 0.5,
		}
		points[i] = frame.TransformPoint(local)
	}

	box := ComputeBoundingBox(points)

	for _, p := range points {
		n := box.Normalize(p)
		assert.LessOrEqual(t, math.Abs(n.X), 1+1e-9)
		assert.LessOrEqual(t, math.Abs(n.Y), 1+1e-9)
		assert.LessOrEqual(t, math.Abs(n.Z), 1+1e-9)

		back := box.InverseNormalize(n)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(back, p)), 1e-9)
	}

	// The longest axis comes first.
	assert.Greater(t, box.Extent.X, box.Extent.Y)
	assert.Greater(t, box.Extent.Y, box.Extent.Z)
	assert.InDelta(t, 4, box.Extent.X, 0.3)
	assert.InDelta(t, 1/(2*math.Sqrt(3)), box.InverseDiagonal, 1e-12)
}

func TestComputeBoundingBox_Flat(t *testing.T) {
	points := []r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}}

	box := ComputeBoundingBox(points)

	assert.InDelta(t, 1.5, box.Extent.X, 1e-9)
	assert.Equal(t, 1.0, box.Extent.Y)
	assert.Equal(t, 1.0, box.Extent.Z)
	assert.InDelta(t, 0.5, box.InverseDiagonal, 1e-12)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(box.Transform.Position, r3.Vec{X: 1.5})), 1e-9)
}

func TestComputeBoundingBox_Empty(t *testing.T) {
	box := ComputeBoundingBox(nil)
	p := r3.Vec{X: 1, Y: 2, Z: 3}
	assert.Equal(t, p, box.Normalize(p))
}
