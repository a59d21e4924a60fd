// Package session implements per-player server-side session state: slot,
// team, name, input registers, ack tracking, and the inactivity counter
// that drives eviction.
package session

import (
	"net"
	"sync/atomic"
)

// Team is the tri-state roster team assignment.
type Team int8

const (
	TeamSpectator Team = -1
	TeamRed       Team = 0
	TeamBlue      Team = 1
)

// MaxSlots is the roster size (§3 Player session: slot in 0..255).
const MaxSlots = 256

// InactivityEvictTicks is the snapshot-frame count after which an
// unresponsive session is evicted (§4.8, ~24s at 100Hz/2).
const InactivityEvictTicks = 1200

// Inputs holds the live input registers a client's UPDATE datagrams write
// into; the tick loop reads them and mutates only PrevKeys, which
// match.Tick sets to Keys after each physics step for edge detection.
type Inputs struct {
	StickAngle float32
	Turn       float32
	FwdBack    float32
	StickX     float32
	StickY     float32
	HeadRot    float32
	BodyRot    float32
	Keys       uint32
	PrevKeys   uint32
}

// Session is one connected player's server-side bookkeeping. Team
// transitions, ack bookkeeping and inactivity are mutated only from the
// single tick-loop goroutine; Addr is set once at JOIN and read by the
// transport's send path.
type Session struct {
	Slot int
	Addr net.Addr

	Name string
	Team Team

	ObjectSlot int // -1 if the session has no live object

	GoalCount   uint32
	AssistCount uint32

	GameID uint32 // last value the client echoed

	LastAckedPacket int64 // -1 if none yet acknowledged
	MsgIndex        uint16
	ChatRepIndex    uint8

	Inputs Inputs

	inactivity uint32 // atomic: snapshot-frame count since last UPDATE
}

// New creates a session for slot, freshly joined with no object.
func New(slot int, addr net.Addr, name string) *Session {
	return &Session{
		Slot:            slot,
		Addr:            addr,
		Name:            name,
		Team:            TeamSpectator,
		ObjectSlot:      -1,
		LastAckedPacket: -1,
	}
}

// ResetInactivity zeroes the inactivity counter; called whenever any
// datagram arrives from this session's address, including a
// GameIdMismatch UPDATE (§7).
func (s *Session) ResetInactivity() {
	atomic.StoreUint32(&s.inactivity, 0)
}

// TickInactivity increments the inactivity counter once per snapshot
// frame and reports whether the session has now crossed the eviction
// threshold.
func (s *Session) TickInactivity() (evict bool) {
	n := atomic.AddUint32(&s.inactivity, 1)
	return n >= InactivityEvictTicks
}

// Inactivity reports the current inactivity counter (used by metrics).
func (s *Session) Inactivity() uint32 {
	return atomic.LoadUint32(&s.inactivity)
}

// ApplyTeamKeys derives the session's team purely from the tri-state key
// bits {2=red, 3=blue, 5=spectator}, per Design Note (i): never by
// truthiness of a team constant. If more than one bit is set, red beats
// blue beats spectator in that priority order; if none are set the team
// is left unchanged.
func ApplyTeamKeys(keys uint32, current Team) Team {
	switch {
	case keys&(1<<2) != 0:
		return TeamRed
	case keys&(1<<3) != 0:
		return TeamBlue
	case keys&(1<<5) != 0:
		return TeamSpectator
	default:
		return current
	}
}

// Roster owns the 256-slot session table. Slot release sets the entry to
// nil; a slot index is never aliased to two live sessions at once.
type Roster struct {
	slots [MaxSlots]*Session
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Add finds an empty slot, stores sess there, and sets sess.Slot. Returns
// false if the roster is full.
func (r *Roster) Add(addr net.Addr, name string) (*Session, bool) {
	for i := range r.slots {
		if r.slots[i] == nil {
			s := New(i, addr, name)
			r.slots[i] = s
			return s, true
		}
	}
	return nil, false
}

// Remove releases slot back to the roster.
func (r *Roster) Remove(slot int) {
	if slot >= 0 && slot < MaxSlots {
		r.slots[slot] = nil
	}
}

// Get returns the session at slot, or nil if unoccupied.
func (r *Roster) Get(slot int) *Session {
	if slot < 0 || slot >= MaxSlots {
		return nil
	}
	return r.slots[slot]
}

// FindByAddr returns the session whose transport address matches addr,
// used to route UPDATE/EXIT datagrams from already-joined clients.
func (r *Roster) FindByAddr(addr net.Addr) *Session {
	key := addr.String()
	for _, s := range r.slots {
		if s != nil && s.Addr.String() == key {
			return s
		}
	}
	return nil
}

// Each calls fn for every occupied slot in ascending slot order
// (deterministic iteration, per §5 ordering requirements).
func (r *Roster) Each(fn func(*Session)) {
	for _, s := range r.slots {
		if s != nil {
			fn(s)
		}
	}
}

// Count reports the number of occupied slots.
func (r *Roster) Count() int {
	n := 0
	for _, s := range r.slots {
		if s != nil {
			n++
		}
	}
	return n
}
