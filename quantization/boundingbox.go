package quantization

import (
	"math"

	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

const minExtent = 1e-5

// BoundingBox is an oriented box enclosing a point cloud.
type BoundingBox struct {
	// Transform places the box center and orientation in feature space.
	Transform xform.Transform
	// Extent holds the half-widths along the box axes. Degenerate axes are
	// reported as 1.
	Extent r3.Vec
	// InverseDiagonal is 1/(2*sqrt(d)) for the d non-degenerate axes. It
	// scales distances between normalized points to roughly [0,1].
	InverseDiagonal float64
}

// IdentityBoundingBox returns the unit box at the origin.
func IdentityBoundingBox() BoundingBox {
	return BoundingBox{
		Transform:       xform.Identity(),
		Extent:          r3.Vec{X: 1, Y: 1, Z: 1},
		InverseDiagonal: inverseDiagonal(3),
	}
}

// ComputeBoundingBox fits an oriented box to points using the principal
// axes of their covariance.
func ComputeBoundingBox(points []r3.Vec) BoundingBox {
	if len(points) == 0 {
		return IdentityBoundingBox()
	}

	var mean r3.Vec
	for _, p := range points {
		mean = r3.Add(mean, p)
	}
	mean = r3.Scale(1/float64(len(points)), mean)

	var cov SymmetricMatrix
	for _, p := range points {
		d := r3.Sub(p, mean)
		cov.A00 += d.X * d.X
		cov.A01 += d.X * d.Y
		cov.A02 += d.X * d.Z
		cov.A11 += d.Y * d.Y
		cov.A12 += d.Y * d.Z
		cov.A22 += d.Z * d.Z
	}
	n := float64(len(points))
	cov = SymmetricMatrix{
		A00: cov.A00 / n, A01: cov.A01 / n, A02: cov.A02 / n,
		A11: cov.A11 / n, A12: cov.A12 / n,
		A22: cov.A22 / n,
	}

	eig := SolveSymmetric(cov)

	// Largest variance along the box X axis.
	x := r3.Unit(eig.Vectors[2])
	y := r3.Unit(eig.Vectors[1])
	z := r3.Cross(x, y)
	rotation := xform.RotationFromBasis(x, y, z)

	frame := xform.New(mean, rotation)

	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range points {
		q := frame.InverseTransformPoint(p)
		lo = r3.Vec{X: math.Min(lo.X, q.X), Y: math.Min(lo.Y, q.Y), Z: math.Min(lo.Z, q.Z)}
		hi = r3.Vec{X: math.Max(hi.X, q.X), Y: math.Max(hi.Y, q.Y), Z: math.Max(hi.Z, q.Z)}
	}

	center := frame.TransformPoint(r3.Scale(0.5, r3.Add(lo, hi)))
	half := r3.Scale(0.5, r3.Sub(hi, lo))

	valid := 0
	floor := func(v float64) float64 {
		if v < minExtent {
			return 1
		}
		valid++
		return v
	}
	extent := r3.Vec{X: floor(half.X), Y: floor(half.Y), Z: floor(half.Z)}

	return BoundingBox{
		Transform:       xform.New(center, rotation),
		Extent:          extent,
		InverseDiagonal: inverseDiagonal(valid),
	}
}

func inverseDiagonal(validDims int) float64 {
	if validDims < 1 {
		validDims = 1
	}
	return 1 / (2 * math.Sqrt(float64(validDims)))
}

// Normalize maps p into the canonical box frame, where the box spans [-1,1]
// on every axis.
func (b BoundingBox) Normalize(p r3.Vec) r3.Vec {
	q := b.Transform.InverseTransformPoint(p)
	return r3.Vec{X: q.X / b.Extent.X, Y: q.Y / b.Extent.Y, Z: q.Z / b.Extent.Z}
}

// InverseNormalize is the inverse of Normalize.
func (b BoundingBox) InverseNormalize(n r3.Vec) r3.Vec {
	q := r3.Vec{X: n.X * b.Extent.X, Y: n.Y * b.Extent.Y, Z: n.Z * b.Extent.Z}
	return b.Transform.TransformPoint(q)
}
