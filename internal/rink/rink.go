// Package rink models the rectangular ice surface with rounded corners
// that players and pucks are confined to, and the vertex-vs-plane/corner
// overlap query physics uses for collision resolution.
package rink

import "hqm_server/internal/vecmath"

// Default dimensions per §6: width=30, length=61, corner radius=8.5.
const (
	DefaultWidth  float32 = 30
	DefaultLength float32 = 61
	DefaultCorner float32 = 8.5
)

// Rink is a rectangular box on the XZ plane with the floor at y=0 and four
// quarter-cylinder rounded corners.
type Rink struct {
	Width, Length, CornerRadius float32

	corners [4]vecmath.Vec3
}

// New builds a Rink with the given dimensions, precomputing corner centers.
func New(width, length, corner float32) *Rink {
	r := &Rink{Width: width, Length: length, CornerRadius: corner}
	r.corners = [4]vecmath.Vec3{
		{X: corner, Y: 0, Z: corner},
		{X: width - corner, Y: 0, Z: corner},
		{X: width - corner, Y: 0, Z: length - corner},
		{X: corner, Y: 0, Z: length - corner},
	}
	return r
}

// Overlap reports the maximum positive penetration of point p into any of
// the rink's bounding surfaces (floor, four walls, four rounded corners)
// and that surface's normal at the point of contact, pointing back into
// the rink. If p is entirely inside the rink, overlap is <= 0.
func (r *Rink) Overlap(p vecmath.Vec3) (overlap float32, normal vecmath.Vec3) {
	best := float32(-1e9)
	var bestNormal vecmath.Vec3

	consider := func(o float32, n vecmath.Vec3) {
		if o > best {
			best = o
			bestNormal = n
		}
	}

	// Floor: y >= 0, normal points up.
	consider(-p.Y, vecmath.Vec3{Y: 1})

	inCornerX := p.X < r.CornerRadius || p.X > r.Width-r.CornerRadius
	inCornerZ := p.Z < r.CornerRadius || p.Z > r.Length-r.CornerRadius

	if !inCornerX || !inCornerZ {
		// Straight wall sections only apply outside the corner regions of
		// the axis they bound.
		if !inCornerZ {
			consider(-p.X, vecmath.Vec3{X: 1})
			consider(p.X-r.Width, vecmath.Vec3{X: -1})
		}
		if !inCornerX {
			consider(-p.Z, vecmath.Vec3{Z: 1})
			consider(p.Z-r.Length, vecmath.Vec3{Z: -1})
		}
	}

	if inCornerX && inCornerZ {
		idx := cornerIndex(p, r)
		center := r.corners[idx]
		diff := vecmath.Vec3{X: p.X - center.X, Y: 0, Z: p.Z - center.Z}
		dist := diff.Length()
		if dist > 0 {
			consider(dist-r.CornerRadius, diff.Scale(-1/dist))
		} else {
			consider(-r.CornerRadius, vecmath.Vec3{X: 1})
		}
	}

	return best, bestNormal
}

func cornerIndex(p vecmath.Vec3, r *Rink) int {
	left := p.X < r.CornerRadius
	near := p.Z < r.CornerRadius
	switch {
	case left && near:
		return 0
	case !left && near:
		return 1
	case !left && !near:
		return 2
	default:
		return 3
	}
}

// Contains reports whether p is within tolerance eps of being inside the
// rink (used by the rink-containment testable property).
func (r *Rink) Contains(p vecmath.Vec3, eps float32) bool {
	overlap, _ := r.Overlap(p)
	return overlap <= eps
}
