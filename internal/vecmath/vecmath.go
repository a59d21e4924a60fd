// Package vecmath provides the fixed-size, single-precision vector and
// matrix types the simulation is built on. Values are passed and returned
// by value throughout: mutate-in-place intents from the original source
// are expressed here as functions returning fresh values, so that
// identical inputs always produce bit-identical outputs.
package vecmath

import "math"

// Vec3 is an ordered triple of 32-bit floats.
type Vec3 struct {
	X, Y, Z float32
}

// Zero is the additive identity.
var Zero = Vec3{}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// Normal returns the unit vector in the direction of v, or Zero if v has
// zero length.
func (v Vec3) Normal() Vec3 {
	l := v.Length()
	if l == 0 {
		return Zero
	}
	return v.Scale(1 / l)
}

// Negate returns -v.
func (v Vec3) Negate() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Mat3 is a row-major 3x3 matrix of Vec3 rows.
type Mat3 struct {
	X, Y, Z Vec3 // row 0, row 1, row 2
}

// Identity is the 3x3 identity matrix.
var Identity = Mat3{
	X: Vec3{1, 0, 0},
	Y: Vec3{0, 1, 0},
	Z: Vec3{0, 0, 1},
}

// FromRows builds a matrix from three row vectors.
func FromRows(r0, r1, r2 Vec3) Mat3 {
	return Mat3{X: r0, Y: r1, Z: r2}
}

// FromColumns builds a matrix from three column vectors.
func FromColumns(c0, c1, c2 Vec3) Mat3 {
	return Mat3{
		X: Vec3{c0.X, c1.X, c2.X},
		Y: Vec3{c0.Y, c1.Y, c2.Y},
		Z: Vec3{c0.Z, c1.Z, c2.Z},
	}
}

// Rows returns the three row vectors of m.
func (m Mat3) Rows() (Vec3, Vec3, Vec3) {
	return m.X, m.Y, m.Z
}

// Columns returns the three column vectors of m.
func (m Mat3) Columns() (Vec3, Vec3, Vec3) {
	return Vec3{m.X.X, m.Y.X, m.Z.X},
		Vec3{m.X.Y, m.Y.Y, m.Z.Y},
		Vec3{m.X.Z, m.Y.Z, m.Z.Z}
}

// MulVec applies m to column vector v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m.X.Dot(v),
		m.Y.Dot(v),
		m.Z.Dot(v),
	}
}

// Mul computes m * o (standard matrix product).
func (m Mat3) Mul(o Mat3) Mat3 {
	oc0, oc1, oc2 := o.Columns()
	return Mat3{
		X: Vec3{m.X.Dot(oc0), m.X.Dot(oc1), m.X.Dot(oc2)},
		Y: Vec3{m.Y.Dot(oc0), m.Y.Dot(oc1), m.Y.Dot(oc2)},
		Z: Vec3{m.Z.Dot(oc0), m.Z.Dot(oc1), m.Z.Dot(oc2)},
	}
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	c0, c1, c2 := m.Columns()
	return Mat3{X: c0, Y: c1, Z: c2}
}

// RotateAxisAngle rotates m by angle radians about the given unit axis,
// returning a fresh orthonormal matrix.
func RotateAxisAngle(m Mat3, axis Vec3, angle float32) Mat3 {
	rot := axisAngleToMat3(axis, angle)
	return rot.Mul(m)
}

// axisAngleToMat3 builds a rotation matrix for a right-handed rotation of
// angle radians about unit axis, via the Rodrigues formula.
func axisAngleToMat3(axis Vec3, angle float32) Mat3 {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	t := 1 - c

	x, y, z := axis.X, axis.Y, axis.Z
	return Mat3{
		X: Vec3{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		Y: Vec3{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		Z: Vec3{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}
}

// Orthonormalize re-derives row 0 of m as the cross product of rows 1 and
// 2, matching the wire protocol's transmission of only the Y/Z basis rows.
func Orthonormalize(rowY, rowZ Vec3) Mat3 {
	rowX := rowY.Cross(rowZ).Normal()
	return Mat3{X: rowX, Y: rowY, Z: rowZ}
}

// ProjectionWithScale computes the component of delta along normal, scaled
// by factor, when that component points in the direction of normal;
// otherwise it returns Zero. This is the common "only push, never pull"
// collision-response primitive used throughout the physics step.
func ProjectionWithScale(delta, normal Vec3, factor float32) Vec3 {
	d := delta.Dot(normal)
	if d <= 0 {
		return Zero
	}
	return normal.Scale(d * factor)
}

// Clamp returns v clamped into [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
