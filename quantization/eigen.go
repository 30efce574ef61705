package quantization

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SymmetricMatrix is the upper triangle of a symmetric 3x3 matrix.
type SymmetricMatrix struct {
	A00, A01, A02 float64
	A11, A12      float64
	A22           float64
}

// Eigen holds the eigen decomposition of a symmetric 3x3 matrix. Values are
// ascending and Vectors[i] is the unit eigenvector of Values[i].
type Eigen struct {
	Values  [3]float64
	Vectors [3]r3.Vec
}

const twoThirdsPi = 2.09439510239319549

// SolveSymmetric computes eigenvalues and eigenvectors of m with the
// non-iterative method of D. Eberly, "A Robust Eigensolver for 3 x 3
// Symmetric Matrices". The returned basis is orthonormal.
func SolveSymmetric(m SymmetricMatrix) Eigen {
	maxAbs := math.Max(
		math.Max(math.Abs(m.A00), math.Abs(m.A01)),
		math.Max(
			math.Max(math.Abs(m.A02), math.Abs(m.A11)),
			math.Max(math.Abs(m.A12), math.Abs(m.A22)),
		),
	)

	if maxAbs == 0 {
		return Eigen{Vectors: [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}}
	}

	// Precondition to avoid floating-point overflow.
	inv := 1 / maxAbs
	a := SymmetricMatrix{
		A00: m.A00 * inv, A01: m.A01 * inv, A02: m.A02 * inv,
		A11: m.A11 * inv, A12: m.A12 * inv,
		A22: m.A22 * inv,
	}

	var e Eigen

	norm := a.A01*a.A01 + a.A02*a.A02 + a.A12*a.A12
	if norm > 0 {
		q := (a.A00 + a.A11 + a.A22) / 3
		b00 := a.A00 - q
		b11 := a.A11 - q
		b22 := a.A22 - q
		p := math.Sqrt((b00*b00 + b11*b11 + b22*b22 + 2*norm) / 6)

		c00 := b11*b22 - a.A12*a.A12
		c01 := a.A01*b22 - a.A12*a.A02
		c02 := a.A01*a.A12 - b11*a.A02
		det := (b00*c00 - a.A01*c01 + a.A02*c02) / (p * p * p)

		halfDet := math.Max(-1, math.Min(1, det*0.5))
		angle := math.Acos(halfDet) / 3
		beta2 := math.Cos(angle) * 2
		beta0 := math.Cos(angle+twoThirdsPi) * 2
		beta1 := -(beta0 + beta2)

		e.Values = [3]float64{q + p*beta0, q + p*beta1, q + p*beta2}

		if halfDet >= 0 {
			e.Vectors[2] = eigenvector0(a, e.Values[2])
			e.Vectors[1] = eigenvector1(a, e.Vectors[2], e.Values[1])
			e.Vectors[0] = r3.Cross(e.Vectors[1], e.Vectors[2])
		} else {
			e.Vectors[0] = eigenvector0(a, e.Values[0])
			e.Vectors[1] = eigenvector1(a, e.Vectors[0], e.Values[1])
			e.Vectors[2] = r3.Cross(e.Vectors[0], e.Vectors[1])
		}
	} else {
		e.Values = [3]float64{a.A00, a.A11, a.A22}
		e.Vectors = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	}

	for i := range e.Values {
		e.Values[i] *= maxAbs
	}

	sortEigen(&e)
	return e
}

func eigenvector0(a SymmetricMatrix, value float64) r3.Vec {
	row0 := r3.Vec{X: a.A00 - value, Y: a.A01, Z: a.A02}
	row1 := r3.Vec{X: a.A01, Y: a.A11 - value, Z: a.A12}
	row2 := r3.Vec{X: a.A02, Y: a.A12, Z: a.A22 - value}

	r0xr1 := r3.Cross(row0, row1)
	r0xr2 := r3.Cross(row0, row2)
	r1xr2 := r3.Cross(row1, row2)
	d0 := r3.Norm2(r0xr1)
	d1 := r3.Norm2(r0xr2)
	d2 := r3.Norm2(r1xr2)

	switch {
	case d0 >= d1 && d0 >= d2:
		return r3.Scale(1/math.Sqrt(d0), r0xr1)
	case d1 >= d2:
		return r3.Scale(1/math.Sqrt(d1), r0xr2)
	default:
		return r3.Scale(1/math.Sqrt(d2), r1xr2)
	}
}

// orthogonalComplement returns u and v such that (u, v, w) is a right-handed
// orthonormal basis for a unit w.
func orthogonalComplement(w r3.Vec) (r3.Vec, r3.Vec) {
	var u r3.Vec
	if math.Abs(w.X) > math.Abs(w.Y) {
		inv := 1 / math.Sqrt(w.X*w.X+w.Z*w.Z)
		u = r3.Vec{X: -w.Z * inv, Z: w.X * inv}
	} else {
		inv := 1 / math.Sqrt(w.Y*w.Y+w.Z*w.Z)
		u = r3.Vec{Y: w.Z * inv, Z: -w.Y * inv}
	}
	return u, r3.Cross(w, u)
}

func eigenvector1(a SymmetricMatrix, evec0 r3.Vec, value float64) r3.Vec {
	u, v := orthogonalComplement(evec0)

	au := a.mulVec(u)
	av := a.mulVec(v)

	m00 := r3.Dot(u, au) - value
	m01 := r3.Dot(u, av)
	m11 := r3.Dot(v, av) - value

	absM00 := math.Abs(m00)
	absM01 := math.Abs(m01)
	absM11 := math.Abs(m11)

	if absM00 >= absM11 {
		if math.Max(absM00, absM01) == 0 {
			return u
		}
		if absM00 >= absM01 {
			m01 /= m00
			m00 = 1 / math.Sqrt(1+m01*m01)
			m01 *= m00
		} else {
			m00 /= m01
			m01 = 1 / math.Sqrt(1+m00*m00)
			m00 *= m01
		}
		return r3.Sub(r3.Scale(m01, u), r3.Scale(m00, v))
	}

	if math.Max(absM11, absM01) == 0 {
		return u
	}
	if absM11 >= absM01 {
		m01 /= m11
		m11 = 1 / math.Sqrt(1+m01*m01)
		m01 *= m11
	} else {
		m11 /= m01
		m01 = 1 / math.Sqrt(1+m11*m11)
		m11 *= m01
	}
	return r3.Sub(r3.Scale(m11, u), r3.Scale(m01, v))
}

func (m SymmetricMatrix) mulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.A00*v.X + m.A01*v.Y + m.A02*v.Z,
		Y: m.A01*v.X + m.A11*v.Y + m.A12*v.Z,
		Z: m.A02*v.X + m.A12*v.Y + m.A22*v.Z,
	}
}

func sortEigen(e *Eigen) {
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && e.Values[j] < e.Values[j-1]; j-- {
			e.Values[j], e.Values[j-1] = e.Values[j-1], e.Values[j]
			e.Vectors[j], e.Vectors[j-1] = e.Vectors[j-1], e.Vectors[j]
		}
	}
}
