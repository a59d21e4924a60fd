// Package physics implements the fixed-step, single-precision simulation
// described in §4.6: player locomotion, stick kinematics, puck dynamics,
// and rink/stick/puck collision resolution. original_source/server.py's
// simulationStep is an unimplemented stub ("pass # Where physics would
// happen if we had any"); every formula here is grounded directly in the
// spec's own prose, not ported from any reference implementation.
package physics

import (
	"math"

	"hqm_server/internal/rink"
	"hqm_server/internal/vecmath"
)

// Per-tick constants, named for the quantity they scale (§4.6).
const (
	Gravity = 0.000680

	groundPushSpeed      = 0.05
	groundAccelLimit     = 0.00055555
	groundBrakeLimit     = 0.000208
	jumpImpulse          = 0.025
	sideslipLimit        = 0.00027778
	yawRateShift         = -5.6 / 14400.0
	yawRateNoShift       = 6.0 / 14400.0
	rotAxisEpsilon       = 1e-5
	crouchRate           = 0.015625
	crouchTarget         = 0.25
	standRate            = 0.125
	standTarget          = 0.75
	groundReactionScale  = 0.00390625
	groundReactionBlend  = 0.25
	groundReactionFactor = 1.2
	groundReactionShift  = 0.4
	lowSafetyPosDelta    = 0.025
	lowSafetyPosYLimit   = 0.5
	lowSafetyLift        = 0.000555555
	lowSpinDamp          = 0.975
	lowCarveLimit        = 0.000347

	stickSpringStiffness = 0.0625
	stickSpringDamping   = 0.5
	stickSpringRateLimit = 0.00888888

	stickTargetDistance = 1.75
	stickSpringTarget   = 0.125
	stickTargetDamping  = 0.5
	stickReactionFrac   = 0.004 // 0.4%
	stickAppliedFrac    = 1 - stickReactionFrac

	substeps          = 10
	substepFraction   = 1.0 / substeps
	puckRinkPush      = 0.0078125
	puckRinkDamping   = 0.015625
	puckRinkProjScale = 0.05
	stickPuckLoseFrac = 0.25
	stickPuckGainFrac = 0.75
	stickPuckProjScale = 0.5
	puckVertexRings   = 3
	puckVertexAngles  = 16
	puckDragScale     = 0.015625
)

// Inputs is the subset of a session's live registers physics consumes
// each tick.
type Inputs struct {
	Turn     float32
	FwdBack  float32
	StickX   float32
	StickY   float32
	HeadRot  float32
	BodyRot  float32
	Keys     uint32
	PrevKeys uint32
}

const (
	keyJump   = 1 << 0
	keyCrouch = 1 << 1
	keyShift  = 1 << 4
)

// Player is the mutable physical state of one player-controlled body.
type Player struct {
	Pos      vecmath.Vec3
	PosDelta vecmath.Vec3
	Rotation vecmath.Mat3
	RotAxis  vecmath.Vec3
	Height   float32
	IsTooLow bool

	StickPos       vecmath.Vec3
	StickPosDelta  vecmath.Vec3
	StickRot       vecmath.Mat3
	StickAzimuth   float32
	StickIncl      float32
	StickTargetAz  float32
	StickTargetIn  float32

	StickSize vecmath.Vec3 // half-extents of the stick collision box

	// HeadRot/BodyRot are the client-reported look angles (spec.md:40,
	// :98, :108); physics carries them through unchanged, no simulation
	// couples to them.
	HeadRot float32
	BodyRot float32
}

// NewPlayer returns a player body standing at pos, upright, stick at rest.
func NewPlayer(pos vecmath.Vec3) *Player {
	return &Player{
		Pos:       pos,
		Rotation:  vecmath.Identity,
		Height:    standTarget,
		StickRot:  vecmath.Identity,
		StickSize: vecmath.Vec3{X: 0.0625, Y: 0.25, Z: 0.5},
	}
}

// Puck is the mutable physical state of one puck body.
type Puck struct {
	Pos      vecmath.Vec3
	PosDelta vecmath.Vec3
	Rotation vecmath.Mat3
	RotAxis  vecmath.Vec3
	Radius   float32
	Height   float32
}

// NewPuck returns a puck at rest at pos.
func NewPuck(pos vecmath.Vec3) *Puck {
	return &Puck{Pos: pos, Rotation: vecmath.Identity, Radius: 0.125, Height: 0.04125}
}

// World is the full set of simulated bodies for one match tick.
type World struct {
	Rink    *rink.Rink
	Hand    float32 // +1 or -1: the single server-wide stick-hand config
	Players []*Player
	Pucks   []*Puck
}

// Step advances the world by one tick given per-player inputs, indexed
// identically to w.Players. Mutation order is players (slot order) then
// pucks via the substep loop, matching §4.6 and the §5 determinism
// requirement.
func Step(w *World, inputs []Inputs) {
	for i, p := range w.Players {
		var in Inputs
		if i < len(inputs) {
			in = inputs[i]
		}
		stepPlayer(p, in, w.Rink, w.Hand)
	}
	for step := 0; step < substeps; step++ {
		for _, pk := range w.Pucks {
			pk.Pos = pk.Pos.Add(pk.PosDelta.Scale(substepFraction))
		}
		for _, pl := range w.Players {
			pl.StickPos = pl.StickPos.Add(pl.StickPosDelta.Scale(substepFraction))
		}
		if step == 0 {
			for _, pk := range w.Pucks {
				resolvePuckRink(pk, w.Rink)
			}
		}
		for _, pk := range w.Pucks {
			for _, pl := range w.Players {
				resolvePuckStick(pk, pl)
			}
		}
	}
	for _, pk := range w.Pucks {
		endOfTickPuck(pk)
	}
}

func clampAbs(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// rateLimitTowards moves cur towards target by at most limit.
func rateLimitTowards(cur, target, limit float32) float32 {
	d := target - cur
	return cur + clampAbs(d, limit)
}

func stepPlayer(p *Player, in Inputs, rnk *rink.Rink, hand float32) {
	p.HeadRot = in.HeadRot
	p.BodyRot = in.BodyRot

	p.Pos = p.Pos.Add(p.PosDelta)
	p.PosDelta.Y -= Gravity

	shift := in.Keys&keyShift != 0

	feet := p.Pos.Y - p.Rotation.Y.Y*p.Height
	onGround := feet <= 0

	if onGround && in.FwdBack != 0 {
		dir := vecmath.Vec3{X: p.Rotation.Z.X, Z: p.Rotation.Z.Z}
		if in.FwdBack < 0 {
			dir = dir.Negate()
		}
		dir = dir.Normal()
		desired := dir.Scale(groundPushSpeed)
		limit := float32(groundAccelLimit)
		cur := vecmath.Vec3{X: p.PosDelta.X, Z: p.PosDelta.Z}
		if cur.Dot(desired) < 0 {
			limit = groundBrakeLimit
		}
		p.PosDelta.X = rateLimitTowards(p.PosDelta.X, desired.X, limit)
		p.PosDelta.Z = rateLimitTowards(p.PosDelta.Z, desired.Z, limit)
	}

	if in.Keys&keyJump != 0 && in.PrevKeys&keyJump == 0 {
		p.PosDelta.Y += jumpImpulse
	}

	turn := clampAbs(in.Turn, 1)
	if shift {
		dir := vecmath.Vec3{X: p.Rotation.X.X, Z: p.Rotation.X.Z}.Normal()
		desired := dir.Scale(groundPushSpeed)
		p.PosDelta.X = rateLimitTowards(p.PosDelta.X, desired.X, sideslipLimit)
		p.PosDelta.Z = rateLimitTowards(p.PosDelta.Z, desired.Z, sideslipLimit)
		p.RotAxis = p.RotAxis.Add(p.Rotation.Y.Scale(turn * yawRateShift))
	} else {
		p.RotAxis = p.RotAxis.Add(p.Rotation.Y.Scale(turn * yawRateNoShift))
	}

	if p.RotAxis.Length() > rotAxisEpsilon {
		axis := p.RotAxis.Normal()
		angle := p.RotAxis.Length()
		p.Rotation = vecmath.RotateAxisAngle(p.Rotation, axis, angle)
	}

	if in.Keys&keyCrouch != 0 {
		p.Height = rateLimitTowards(p.Height, crouchTarget, crouchRate)
	} else {
		p.Height = rateLimitTowards(p.Height, standTarget, standRate)
	}

	p.IsTooLow = false
	if feet < 0 {
		fwd := p.Rotation.Z
		if shift {
			fwd = p.Rotation.X
		}
		factor := float32(groundReactionFactor)
		if shift {
			factor = groundReactionShift
		}
		tmp := vecmath.Vec3{Y: -feet * groundReactionScale}.Sub(p.PosDelta.Scale(groundReactionBlend))
		tmp = tmp.Sub(fwd.Scale(tmp.Dot(fwd)))
		correction := vecmath.ProjectionWithScale(tmp, vecmath.Vec3{Y: 1}, factor)
		p.PosDelta = p.PosDelta.Add(correction)
	}

	if p.Pos.Y < lowSafetyPosYLimit && p.PosDelta.Length() < lowSafetyPosDelta {
		p.PosDelta.Y += lowSafetyLift
		p.IsTooLow = true
	}

	if p.IsTooLow {
		p.RotAxis = p.RotAxis.Scale(lowSpinDamp)
		lateral := vecmath.Vec3{X: p.Rotation.Y.X, Z: p.Rotation.Y.Z}
		spin := p.Rotation.Z.Scale(p.PosDelta.Dot(p.Rotation.Z))
		torque := lateral.Add(spin)
		if torque.Length() > lowCarveLimit {
			torque = torque.Normal().Scale(lowCarveLimit)
		}
		p.RotAxis = p.RotAxis.Add(torque)
	}

	stepStick(p, in, rnk, hand)
}

func stepStick(p *Player, in Inputs, _ *rink.Rink, hand float32) {
	targetAz := in.StickX
	targetIn := in.StickY
	p.StickTargetAz = targetAz
	p.StickTargetIn = targetIn

	azErr := targetAz - p.StickAzimuth
	inErr := targetIn - p.StickIncl
	azRate := clampAbs(azErr*stickSpringStiffness-p.StickAzimuth*stickSpringDamping, stickSpringRateLimit)
	inRate := clampAbs(inErr*stickSpringStiffness-p.StickIncl*stickSpringDamping, stickSpringRateLimit)
	p.StickAzimuth += azRate
	p.StickIncl += inRate

	// Only pivot2 (the front/push pivot) is needed below: it anchors the
	// stick target position. See DESIGN.md for why the rear pivot and the
	// azimuth-direction vector the earlier draft also computed here were
	// dropped rather than kept unused.
	pivot2 := vecmath.Vec3{X: -0.375 * hand, Y: -0.5, Z: -0.125}

	stickRot := vecmath.RotateAxisAngle(vecmath.Identity, p.Rotation.Y, p.StickAzimuth)
	stickRot = vecmath.RotateAxisAngle(stickRot, p.Rotation.X, p.StickIncl)
	if p.StickIncl > 0 {
		stickRot = vecmath.RotateAxisAngle(stickRot, p.Rotation.X, math.Pi/2)
	}
	handleAxis := stickRot.Z.Add(stickRot.Y.Scale(0.75)).Normal()
	p.StickRot = vecmath.RotateAxisAngle(stickRot, handleAxis, -in.StickX*math.Pi/4)

	worldPivot2 := p.Pos.Add(p.Rotation.MulVec(pivot2))
	target := worldPivot2.Sub(p.StickRot.Z.Scale(stickTargetDistance))
	if target.Y < 0 {
		target.Y = 0
	}

	toTarget := target.Sub(p.StickPos)
	accel := toTarget.Scale(stickSpringTarget).Sub(p.StickPosDelta.Scale(stickTargetDamping))
	rotVel := p.RotAxis.Cross(p.StickPos.Sub(p.Pos)).Scale(stickTargetDamping)
	accel = accel.Add(rotVel)

	p.StickPosDelta = p.StickPosDelta.Add(accel.Scale(stickAppliedFrac))

	reaction := accel.Scale(stickReactionFrac)
	p.PosDelta = p.PosDelta.Add(reaction)
	leverArm := p.StickPos.Sub(p.Pos)
	p.RotAxis = p.RotAxis.Add(reaction.Cross(leverArm))
}

func resolvePuckRink(pk *Puck, rnk *rink.Rink) {
	var maxOverlap float32
	var maxNormal vecmath.Vec3
	found := false

	for ring := 0; ring < puckVertexRings; ring++ {
		h := -pk.Height
		switch ring {
		case 1:
			h = 0
		case 2:
			h = pk.Height
		}
		for a := 0; a < puckVertexAngles; a++ {
			theta := 2 * math.Pi * float64(a) / puckVertexAngles
			offset := vecmath.Vec3{
				X: pk.Radius * float32(math.Cos(theta)),
				Y: h,
				Z: pk.Radius * float32(math.Sin(theta)),
			}
			vertex := pk.Pos.Add(pk.Rotation.MulVec(offset))
			overlap, normal := rnk.Overlap(vertex)
			if overlap > 0 && (!found || overlap > maxOverlap) {
				maxOverlap = overlap
				maxNormal = normal
				found = true
			}
		}
	}
	if !found {
		return
	}
	push := maxNormal.Scale(puckRinkPush * maxOverlap)
	damp := pk.PosDelta.Scale(puckRinkDamping)
	delta := push.Sub(damp)
	if delta.Dot(maxNormal) > 0 {
		delta = vecmath.ProjectionWithScale(delta, maxNormal, puckRinkProjScale)
	}
	pk.PosDelta = pk.PosDelta.Add(delta)
}

func resolvePuckStick(pk *Puck, pl *Player) {
	if pk.Pos.Sub(pl.StickPos).Length() > 1.0 {
		return
	}
	normal := pl.StickRot.X
	toPuck := pk.Pos.Sub(pl.StickPos)
	dist := toPuck.Dot(normal)
	penetration := pk.Radius - float32(math.Abs(float64(dist)))
	if penetration <= 0 {
		return
	}
	if dist < 0 {
		normal = normal.Negate()
	}
	relVel := pk.PosDelta.Sub(pl.StickPosDelta)
	dotNormal := relVel.Dot(normal)
	reactionTerm := penetration
	delta := vecmath.ProjectionWithScale(normal.Scale(dotNormal+reactionTerm), normal, stickPuckProjScale)

	pl.StickPosDelta = pl.StickPosDelta.Sub(delta.Scale(stickPuckLoseFrac))
	pk.PosDelta = pk.PosDelta.Add(delta.Scale(stickPuckGainFrac))
}

func endOfTickPuck(pk *Puck) {
	speed2 := pk.PosDelta.LengthSquared()
	if speed2 > 0 {
		dir := pk.PosDelta.Normal()
		pk.PosDelta = pk.PosDelta.Sub(dir.Scale(puckDragScale * speed2))
	}
	if pk.RotAxis.Length() > rotAxisEpsilon {
		axis := pk.RotAxis.Normal()
		angle := pk.RotAxis.Length()
		pk.Rotation = vecmath.RotateAxisAngle(pk.Rotation, axis, angle)
	}
}
