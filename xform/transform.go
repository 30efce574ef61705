package xform

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid transform: rotation followed by translation.
type Transform struct {
	Position r3.Vec
	Rotation r3.Rotation
}

// IdentityRotation is the rotation that leaves every vector unchanged.
var IdentityRotation = r3.Rotation{Real: 1}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: IdentityRotation}
}

// New creates a transform from a position and a rotation. The rotation is
// normalized.
func New(position r3.Vec, rotation r3.Rotation) Transform {
	return Transform{Position: position, Rotation: NormalizeRotation(rotation)}
}

// Translation creates a pure translation.
func Translation(p r3.Vec) Transform {
	return Transform{Position: p, Rotation: IdentityRotation}
}

// TransformPoint maps p from local space into the space of t.
func (t Transform) TransformPoint(p r3.Vec) r3.Vec {
	return r3.Add(t.Position, t.Rotation.Rotate(p))
}

// TransformDirection rotates d without translating it.
func (t Transform) TransformDirection(d r3.Vec) r3.Vec {
	return t.Rotation.Rotate(d)
}

// InverseTransformPoint maps p from the space of t back into local space.
func (t Transform) InverseTransformPoint(p r3.Vec) r3.Vec {
	return InverseRotation(t.Rotation).Rotate(r3.Sub(p, t.Position))
}

// InverseTransformDirection rotates d by the inverse rotation of t.
func (t Transform) InverseTransformDirection(d r3.Vec) r3.Vec {
	return InverseRotation(t.Rotation).Rotate(d)
}

// Mul returns t * o (apply o first, then t).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Position: t.TransformPoint(o.Position),
		Rotation: MulRotation(t.Rotation, o.Rotation),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := InverseRotation(t.Rotation)
	return Transform{
		Position: inv.Rotate(r3.Scale(-1, t.Position)),
		Rotation: inv,
	}
}

// Forward returns the local +Z axis expressed in the space of t.
func (t Transform) Forward() r3.Vec {
	return t.Rotation.Rotate(r3.Vec{Z: 1})
}

// Delta returns from⁻¹ * to, i.e. to expressed relative to from.
func Delta(from, to Transform) Transform {
	return from.Inverse().Mul(to)
}

// Interpolate blends a and b: positions lerp, rotations slerp.
func Interpolate(a, b Transform, theta float64) Transform {
	return Transform{
		Position: Lerp(a.Position, b.Position, theta),
		Rotation: Slerp(a.Rotation, b.Rotation, theta),
	}
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b r3.Vec, theta float64) r3.Vec {
	return r3.Add(a, r3.Scale(theta, r3.Sub(b, a)))
}

// MulRotation composes two rotations (b is applied first).
func MulRotation(a, b r3.Rotation) r3.Rotation {
	return NormalizeRotation(r3.Rotation(quat.Mul(quat.Number(a), quat.Number(b))))
}

// InverseRotation returns the inverse of a unit rotation.
func InverseRotation(r r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Conj(quat.Number(r)))
}

// NormalizeRotation rescales r to unit length. A degenerate quaternion maps
// to the identity.
func NormalizeRotation(r r3.Rotation) r3.Rotation {
	n := quat.Abs(quat.Number(r))
	if n < 1e-12 || math.IsNaN(n) {
		return IdentityRotation
	}
	if n == 1 {
		return r
	}
	return r3.Rotation(quat.Scale(1/n, quat.Number(r)))
}

// Slerp spherically interpolates between unit rotations along the shortest arc.
func Slerp(a, b r3.Rotation, theta float64) r3.Rotation {
	if theta <= 0 {
		return a
	}
	if theta >= 1 {
		return b
	}
	qa := quat.Number(a)
	qb := quat.Number(b)
	if dotRotation(a, b) < 0 {
		qb = quat.Scale(-1, qb)
	}
	// p(t) = (q1 * q0^-1)^t * q0
	d := quat.Mul(qb, quat.Conj(qa))
	if math.Abs(d.Real) >= 1-1e-12 {
		return NormalizeRotation(r3.Rotation(quat.Add(quat.Scale(1-theta, qa), quat.Scale(theta, qb))))
	}
	return NormalizeRotation(r3.Rotation(quat.Mul(quat.PowReal(d, theta), qa)))
}

// AxisAngle creates a rotation of angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) r3.Rotation {
	if r3.Norm(axis) == 0 {
		return IdentityRotation
	}
	return r3.NewRotation(angle, r3.Unit(axis))
}

// RotationFromBasis builds the rotation whose columns are the orthonormal
// right-handed axes x, y and z.
func RotationFromBasis(x, y, z r3.Vec) r3.Rotation {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var q quat.Number
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{Real: 0.25 * s, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}
	return NormalizeRotation(r3.Rotation(q))
}

// ApproxEqual reports whether a and b agree within tol (positions) and
// represent the same orientation within tol.
func ApproxEqual(a, b Transform, tol float64) bool {
	if r3.Norm(r3.Sub(a.Position, b.Position)) > tol {
		return false
	}
	return 1-math.Abs(dotRotation(a.Rotation, b.Rotation)) <= tol
}

func dotRotation(a, b r3.Rotation) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// SafeUnit normalizes v, returning the zero vector for (near) zero input.
func SafeUnit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
