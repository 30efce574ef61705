// Package xform provides rigid transforms (translation + rotation) used by the
// motion database for joint, trajectory and bounding-box frames.
//
// Vectors are gonum r3.Vec values and rotations are unit quaternions stored as
// r3.Rotation. All math is carried out in float64; the blob stores float32 and
// converts on access.
//
// # Conventions
//
//	p' = T.TransformPoint(p)      = T.Position + T.Rotation.Rotate(p)
//	(A.Mul(B)).TransformPoint(p)  = A.TransformPoint(B.TransformPoint(p))
//	A.Inverse().Mul(B)            = B expressed in the frame of A
//
// The identity rotation is r3.Rotation{Real: 1}; the zero value of Transform is
// NOT the identity, use Identity().
package xform
