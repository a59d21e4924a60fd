// Package match owns authoritative game state: the roster, the 32-slot
// object grid, the event log, the snapshot ring, and the tick scheduler
// that drives physics and emits GAME_UPDATE datagrams. Every exported
// method here is meant to run exclusively from the single event-loop
// goroutine described in §5 -- Match holds no internal locking.
package match

import (
	"hqm_server/internal/eventlog"
	"hqm_server/internal/objectring"
	"hqm_server/internal/physics"
	"hqm_server/internal/protocol"
	"hqm_server/internal/rink"
	"hqm_server/internal/rotcodec"
	"hqm_server/internal/session"
	"hqm_server/internal/vecmath"
)

// Tick-scheduling constants (§4.8).
const (
	SnapshotEveryNTicks = 2
	StartingTimeLeft    = 30000
	MaxEventsPerFrame   = protocol.MaxEventsPerFrame
)

// gridEntry is one slot of the 32-slot table of live physical bodies
// (Match.grid), independent of the 256-slot roster (Design Note i: disjoint, non-owning, integer-
// indexed tables -- no pointer aliasing between the two).
type gridEntry struct {
	occupied  bool
	kind      objectring.ObjectType
	player    *physics.Player
	puck      *physics.Puck
	ownerSlot int // roster slot owning this player object, -1 for a puck
}

// Match is one in-progress (or not-yet-started) game.
type Match struct {
	GameID    uint32
	RedScore  uint8
	BlueScore uint8
	Period    uint8
	TimeLeft  uint16
	Simstep   uint32
	GameOver  bool

	Roster *session.Roster
	Events *eventlog.Log
	Ring   *objectring.Ring

	grid [objectring.Slots]gridEntry
	rnk  *rink.Rink
	hand float32

	packetID     int64 // -1 before the first snapshot
	nextGameID   uint32
}

// New creates an idle match: no game started, roster empty, grid empty.
func New(rnk *rink.Rink, hand float32) *Match {
	return &Match{
		Roster:     session.NewRoster(),
		Events:     eventlog.New(),
		Ring:       objectring.New(),
		rnk:        rnk,
		hand:       hand,
		packetID:   -1,
		nextGameID: 1,
	}
}

// StartNewGame allocates the next game id, resets scores/clock/events,
// re-emits a Join event for every already-connected session (so a newly
// reconciling client sees the current roster), spawns the initial puck,
// and marks every session to receive NEW_MATCH on its next send (§4.8).
func (m *Match) StartNewGame() {
	m.GameID = m.nextGameID
	m.nextGameID++
	m.RedScore = 0
	m.BlueScore = 0
	m.Period = 0
	m.TimeLeft = StartingTimeLeft
	m.Simstep = 0
	m.GameOver = false
	m.Events.Reset()
	m.grid = [objectring.Slots]gridEntry{}

	m.Roster.Each(func(s *session.Session) {
		s.ObjectSlot = -1
		s.GameID = 0 // forces a NEW_MATCH on this session's next send
		m.Events.Append(eventlog.JoinExitEvent(s.Slot, true, eventlog.Team(s.Team), -1))
	})

	m.spawnPuck(vecmath.Vec3{X: m.rnk.Width / 2, Y: 0.5, Z: m.rnk.Length / 2})
}

func (m *Match) spawnPuck(pos vecmath.Vec3) (slot int, ok bool) {
	for i := range m.grid {
		if !m.grid[i].occupied {
			m.grid[i] = gridEntry{occupied: true, kind: objectring.TypePuck, puck: physics.NewPuck(pos), ownerSlot: -1}
			return i, true
		}
	}
	return -1, false
}

// RinkWidth reports the configured rink width, for callers (the
// transport layer's spawn logic) that need a sensible default spawn
// coordinate without reaching into Match's internals.
func (m *Match) RinkWidth() float32 {
	return m.rnk.Width
}

// SpawnPlayerObject places a new physical body for sess's player at pos,
// occupying the first free grid slot. Returns false if the grid is full.
func (m *Match) SpawnPlayerObject(sess *session.Session, pos vecmath.Vec3) bool {
	for i := range m.grid {
		if !m.grid[i].occupied {
			m.grid[i] = gridEntry{occupied: true, kind: objectring.TypePlayer, player: physics.NewPlayer(pos), ownerSlot: sess.Slot}
			sess.ObjectSlot = i
			return true
		}
	}
	return false
}

// ReleaseObject frees the grid slot previously assigned to a session's
// player body, as happens on EXIT or inactivity eviction.
func (m *Match) ReleaseObject(slot int) {
	if slot < 0 || slot >= objectring.Slots {
		return
	}
	m.grid[slot] = gridEntry{}
}

// ApplyTeamChange derives the session's team from the live key bits and
// applies it, per Design Note (i).
func (m *Match) ApplyTeamChange(sess *session.Session, keys uint32) {
	sess.Team = session.ApplyTeamKeys(keys, sess.Team)
}

// buildWorld assembles a physics.World (and an aligned Inputs slice) from
// the currently occupied grid slots, in ascending slot order, per the
// §5 deterministic-ordering requirement.
func (m *Match) buildWorld() (*physics.World, []physics.Inputs) {
	w := &physics.World{Rink: m.rnk, Hand: m.hand}
	var inputs []physics.Inputs
	for i := range m.grid {
		e := &m.grid[i]
		if !e.occupied {
			continue
		}
		switch e.kind {
		case objectring.TypePlayer:
			w.Players = append(w.Players, e.player)
			inputs = append(inputs, m.inputsForOwner(e.ownerSlot))
		case objectring.TypePuck:
			w.Pucks = append(w.Pucks, e.puck)
		}
	}
	return w, inputs
}

func (m *Match) inputsForOwner(slot int) physics.Inputs {
	sess := m.Roster.Get(slot)
	if sess == nil {
		return physics.Inputs{}
	}
	return physics.Inputs{
		Turn:     sess.Inputs.Turn,
		FwdBack:  sess.Inputs.FwdBack,
		StickX:   sess.Inputs.StickX,
		StickY:   sess.Inputs.StickY,
		HeadRot:  sess.Inputs.HeadRot,
		BodyRot:  sess.Inputs.BodyRot,
		Keys:     sess.Inputs.Keys,
		PrevKeys: sess.Inputs.PrevKeys,
	}
}

// Tick advances the match by one simulation step: team-change side
// effects, physics, clock bookkeeping, and (every SnapshotEveryNTicks
// ticks) snapshot emission bookkeeping. snapshot reports whether this
// tick produced a new packet id.
func (m *Match) Tick() (snapshot bool) {
	m.Roster.Each(func(s *session.Session) {
		m.ApplyTeamChange(s, s.Inputs.Keys)
	})

	world, inputs := m.buildWorld()
	physics.Step(world, inputs)

	// PrevKeys is updated only after physics has seen this tick's keys, so
	// that edge-triggered inputs (jump) compare against the previous tick.
	m.Roster.Each(func(s *session.Session) {
		s.Inputs.PrevKeys = s.Inputs.Keys
	})

	if m.TimeLeft == 0 {
		m.TimeLeft = StartingTimeLeft
	} else {
		m.TimeLeft--
	}
	m.Simstep++

	if m.Simstep&1 == 0 {
		m.packetID++
		m.snapshotGrid()
		return true
	}
	return false
}

func (m *Match) snapshotGrid() {
	m.Ring.ClearFrame(uint32(m.packetID))
	for i := range m.grid {
		e := &m.grid[i]
		if !e.occupied {
			continue
		}
		m.Ring.Put(uint32(m.packetID), i, toSnapshotObject(e))
	}
}

func toSnapshotObject(e *gridEntry) *objectring.SnapshotObject {
	if e.kind == objectring.TypePuck {
		p := e.puck
		rotA, rotB := quantizeRotation(p.Rotation)
		return &objectring.SnapshotObject{
			Type: objectring.TypePuck,
			PosX: quantizePos(p.Pos.X), PosY: quantizePos(p.Pos.Y), PosZ: quantizePos(p.Pos.Z),
			RotA: rotA, RotB: rotB,
		}
	}
	p := e.player
	rotA, rotB := quantizeRotation(p.Rotation)
	stickRotA, stickRotB := quantizeStickRotation(p.StickRot)
	return &objectring.SnapshotObject{
		Type: objectring.TypePlayer,
		PosX: quantizePos(p.Pos.X), PosY: quantizePos(p.Pos.Y), PosZ: quantizePos(p.Pos.Z),
		RotA: rotA, RotB: rotB,
		StickX: quantizeStickPos(p.StickPos.X, p.Pos.X), StickY: quantizeStickPos(p.StickPos.Y, p.Pos.Y), StickZ: quantizeStickPos(p.StickPos.Z, p.Pos.Z),
		StickRotA: stickRotA, StickRotB: stickRotB,
		HeadRotInt: quantizeHeadBody(p.HeadRot), BodyRotInt: quantizeHeadBody(p.BodyRot),
	}
}

// Quantization widths per §4.4: position fields are 17-bit fixed-point
// at 1024 units/metre; stick position is 13-bit, relative to the player,
// clamp((stick+4-playerPos)*1024, 0, 0x1FFF); head/body rotation
// angles are 15-bit around a zero-centered offset, clamp(rot*8192+16384,
// 0, 0x7FFF).
const (
	posScale       = 1024
	posBits        = 17
	stickPosScale  = 1024
	stickPosBits   = 13
	headBodyScale  = 8192
	headBodyOffset = 16384
	headBodyBits   = 15
)

func quantizePos(v float32) uint32 {
	return clampUnsigned(int64(v*posScale), posBits)
}

func quantizeStickPos(stick, player float32) uint32 {
	return clampUnsigned(int64((stick+4-player)*stickPosScale), stickPosBits)
}

func quantizeHeadBody(v float32) uint32 {
	return clampUnsigned(int64(v*headBodyScale)+headBodyOffset, headBodyBits)
}

func clampUnsigned(v int64, bits uint) uint32 {
	max := int64(1)<<bits - 1
	if v < 0 {
		return 0
	}
	if v > max {
		return uint32(max)
	}
	return uint32(v)
}

// rotBits/stickRotBits mirror the wire's 31-bit and 25-bit odd-width
// rotation encodings (§4.2). encodeRotRow encodes the Y and Z rows of
// Rotation/StickRot with internal/rotcodec here, so the ring stores the
// already-encoded integers and the wire writes them unchanged.
const (
	rotBits      = 31
	stickRotBits = 25
)

func quantizeRotation(m vecmath.Mat3) (a, b uint32) {
	return encodeRotRow(m.Y, rotBits), encodeRotRow(m.Z, rotBits)
}

func quantizeStickRotation(m vecmath.Mat3) (a, b uint32) {
	return encodeRotRow(m.Y, stickRotBits), encodeRotRow(m.Z, stickRotBits)
}

func encodeRotRow(v vecmath.Vec3, bits int) uint32 {
	return rotcodec.Encode(bits, v)
}

// BuildGameUpdate assembles the GAME_UPDATE payload a session should
// receive for the current packet id, pulling object slots from the
// snapshot ring and an event window starting at sess's own cursor.
func (m *Match) BuildGameUpdate(sess *session.Session) protocol.GameUpdate {
	var objs [objectring.Slots]*objectring.SnapshotObject
	for i := 0; i < objectring.Slots; i++ {
		obj, ok := m.Ring.Get(uint32(m.packetID), i)
		if ok {
			objs[i] = obj
		}
	}

	base, events := m.Events.Window(int(sess.MsgIndex), MaxEventsPerFrame)

	return protocol.GameUpdate{
		GameUpdateHeader: protocol.GameUpdateHeader{
			GameID:           m.GameID,
			Simstep:          m.Simstep,
			GameOver:         m.GameOver,
			RedScore:         m.RedScore,
			BlueScore:        m.BlueScore,
			TimeLeft:         m.TimeLeft,
			Timeout:          0,
			Period:           m.Period,
			YourSlot:         uint8(sess.Slot),
			PacketID:         uint32(m.packetID),
			ReferencedPacket: uint32(sess.LastAckedPacket),
		},
		Objects: objs,
		BaseMsg: uint16(base),
		Events:  events,
	}
}

// AdvanceSessionCursor advances sess's event cursor after a GAME_UPDATE
// carrying events up to base+len(events) has been sent, per §4.7's
// "client advances msgIndex to baseIndex + N" rule -- applied here on
// the send side since this server tracks what each session has been
// shown, not merely what it has acknowledged.
func (m *Match) AdvanceSessionCursor(sess *session.Session, base int, count int) {
	if next := base + count; next > int(sess.MsgIndex) {
		sess.MsgIndex = uint16(next)
	}
}

// ApplyGoal records a goal for team, updates the scorer/assister's
// roster counters, and appends the event (§4.7).
func (m *Match) ApplyGoal(team eventlog.Team, scorerSlot, assisterSlot int) {
	switch team {
	case eventlog.TeamRed:
		m.RedScore++
	case eventlog.TeamBlue:
		m.BlueScore++
	}
	if s := m.Roster.Get(scorerSlot); s != nil {
		s.GoalCount++
	}
	if s := m.Roster.Get(assisterSlot); s != nil {
		s.AssistCount++
	}
	m.Events.Append(eventlog.GoalEvent(team, scorerSlot, assisterSlot))
}

// TickInactivity increments every session's inactivity counter (called
// once per snapshot frame, never per raw tick) and evicts any session
// that has crossed the threshold, releasing its object and appending an
// exit event plus a server chat line (§4.8).
func (m *Match) TickInactivity() {
	var evicted []int
	m.Roster.Each(func(s *session.Session) {
		if s.TickInactivity() {
			evicted = append(evicted, s.Slot)
		}
	})
	for _, slot := range evicted {
		m.evictSession(slot)
	}
}

func (m *Match) evictSession(slot int) {
	s := m.Roster.Get(slot)
	if s == nil {
		return
	}
	m.Events.Append(eventlog.ChatEvent(-1, s.Name+" exited"))
	m.Events.Append(eventlog.JoinExitEvent(slot, false, eventlog.Team(s.Team), s.ObjectSlot))
	if s.ObjectSlot >= 0 {
		m.ReleaseObject(s.ObjectSlot)
	}
	m.Roster.Remove(slot)
}
