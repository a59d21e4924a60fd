package rotcodec

import (
	"math"
	"testing"

	"hqm_server/internal/vecmath"
)

// boundFor computes the two-triangle area bound from Testable Property 1:
// |v - decode(encode(v))| < 2^((3-B)/2) * 4.
func boundFor(bits int) float64 {
	return math.Pow(2, float64(3-bits)/2) * 4
}

func sampleVectors() []vecmath.Vec3 {
	var out []vecmath.Vec3
	for _, axis := range []vecmath.Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	} {
		out = append(out, axis)
	}
	for i := 0; i < 40; i++ {
		theta := float64(i) * 0.159
		phi := float64(i) * 0.271
		x := float32(math.Sin(theta) * math.Cos(phi))
		y := float32(math.Cos(theta))
		z := float32(math.Sin(theta) * math.Sin(phi))
		v := vecmath.Vec3{X: x, Y: y, Z: z}.Normal()
		if v != vecmath.Zero {
			out = append(out, v)
		}
	}
	return out
}

func TestEncodeDecodeRoundTripBound(t *testing.T) {
	for _, bits := range []int{25, 31} {
		bound := boundFor(bits)
		for _, v := range sampleVectors() {
			n := Encode(bits, v)
			w := Decode(bits, n)
			dist := v.Sub(w).Length()
			if float64(dist) >= bound {
				t.Fatalf("bits=%d v=%+v decoded=%+v dist=%v exceeds bound %v", bits, v, w, dist, bound)
			}
		}
	}
}

func TestEncodeDecodeAxisAligned(t *testing.T) {
	axes := []vecmath.Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	// An axis is a vertex of every sub-triangle it selects and Decode
	// returns the centroid of the final triangle, so the result lies within
	// one final-triangle edge (sqrt(2) * 2^-14 after 14 halvings at B=31).
	tol := math.Sqrt2 * math.Pow(2, -14)
	for _, v := range axes {
		n := Encode(31, v)
		w := Decode(31, n)
		if dist := v.Sub(w).Length(); float64(dist) > tol {
			t.Fatalf("axis %+v decoded as %+v, dist=%v", v, w, dist)
		}
	}
}
