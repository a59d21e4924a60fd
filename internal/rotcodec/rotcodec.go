// Package rotcodec implements the bijection between a 3D unit vector and
// an odd-bit-width integer, via recursive octahedral-triangle subdivision.
// It is the wire encoding used for object orientation (B=31) and stick
// rotation (B=25).
package rotcodec

import "hqm_server/internal/vecmath"

// unitVectors is the fixed table of 6 axis-aligned unit vectors the initial
// spherical triangle vertices are drawn from.
var unitVectors = [6]vecmath.Vec3{
	{X: 0, Y: -1, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: 1},
	{X: 0, Y: 1, Z: 0},
}

var vChoice1 = [8]int{5, 5, 5, 5, 4, 1, 3, 2}
var vChoice2 = [8]int{3, 4, 2, 1, 3, 4, 2, 1}
var vChoice3 = [8]int{4, 1, 3, 2, 0, 0, 0, 0}

// initialTriangle selects the starting spherical triangle (a1, a2, a3)
// from the three sign bits of v.
func initialTriangle(v vecmath.Vec3) (a1, a2, a3 vecmath.Vec3) {
	sel := 0
	if v.X < 0 {
		sel |= 1
	}
	if v.Z < 0 {
		sel |= 2
	}
	if v.Y < 0 {
		sel |= 4
	}
	return unitVectors[vChoice1[sel]], unitVectors[vChoice2[sel]], unitVectors[vChoice3[sel]]
}

// Encode maps unit vector v to a bits-wide integer (bits must be odd, >= 5).
// At each 2-bit step the sub-triangle containing v is identified via the
// signed triple product of the candidate edge against v, descending
// priority order sub-triangle 0->1->2->3 on boundary ties.
func Encode(bits int, v vecmath.Vec3) uint32 {
	sel := 0
	if v.X < 0 {
		sel |= 1
	}
	if v.Z < 0 {
		sel |= 2
	}
	if v.Y < 0 {
		sel |= 4
	}
	result := uint32(sel)

	a1, a2, a3 := initialTriangle(v)
	for i := 3; i < bits; i += 2 {
		mid12 := a1.Add(a2).Normal()
		mid23 := a2.Add(a3).Normal()
		mid31 := a3.Add(a1).Normal()

		switch {
		case triangleTest(v, mid12, mid31):
			// sub-triangle 0: (a1, mid12, mid31); a1 unchanged.
			a2, a3 = mid12, mid31
		case triangleTest(v, mid23, mid12):
			// sub-triangle 1: (mid12, a2, mid23); a2 unchanged.
			a1, a3 = mid12, mid23
			result |= 1 << uint(i)
		case triangleTest(v, mid31, mid23):
			// sub-triangle 2: (mid31, mid23, a3); a3 unchanged.
			a1, a2 = mid31, mid23
			result |= 2 << uint(i)
		default:
			// sub-triangle 3: the center triangle (mid12, mid23, mid31).
			a1, a2, a3 = mid12, mid23, mid31
			result |= 3 << uint(i)
		}
	}
	return result
}

// triangleTest is the encoder's half-space membership test: it reports
// whether v lies on the interior side of the edge (p2, p3), via the sign
// of the triple product cross(p2-p3, v-p3) dotted with v.
func triangleTest(v, p2, p3 vecmath.Vec3) bool {
	b1 := v.Sub(p3)
	b2 := p2.Sub(p3)
	b3 := b2.Cross(b1)
	return v.Dot(b3) >= 0
}

// Decode maps an encoded integer back to a unit vector. bits must match
// the width Encode was called with.
func Decode(bits int, n uint32) vecmath.Vec3 {
	lowest := int(n & 0x7)
	a1 := unitVectors[vChoice1[lowest]]
	a2 := unitVectors[vChoice2[lowest]]
	a3 := unitVectors[vChoice3[lowest]]

	for i := 3; i < bits; i += 2 {
		c := (n >> uint(i)) & 3
		mid12 := a1.Add(a2).Normal()
		mid23 := a2.Add(a3).Normal()
		mid31 := a3.Add(a1).Normal()
		switch c {
		case 0:
			a2, a3 = mid12, mid31
		case 1:
			a1, a3 = mid12, mid23
		case 2:
			a1, a2 = mid31, mid23
		case 3:
			a1, a2, a3 = mid12, mid23, mid31
		}
	}
	return a1.Add(a2).Add(a3).Normal()
}
