// Package objectring implements the 256-entry ring of snapshot-object
// records used for delta coding on send and decode, per §4.4. Both the
// server and a conforming client keep one of these; the same type serves
// both roles.
package objectring

// SnapshotObject is the externally observable, already-quantized integer
// form of one object slot at one snapshot frame. Fields unused by a Puck
// (the stick/head/body fields) are left zero and ignored by the encoder
// when Type is TypePuck.
type SnapshotObject struct {
	Type ObjectType

	PosX, PosY, PosZ uint32 // 17-bit, clamp(pos*1024, 0, 0x1FFFF)
	RotA, RotB       uint32 // 31-bit rotation-row integers (§4.2)

	// Player-only fields.
	StickX, StickY, StickZ   uint32 // 13-bit
	StickRotA, StickRotB     uint32 // 25-bit
	HeadRotInt, BodyRotInt   uint32 // 15-bit, clamp(rot*8192+16384, 0, 0x7FFF)
}

// ObjectType mirrors the 2-bit type tag on the wire.
type ObjectType uint8

const (
	TypePlayer ObjectType = 0
	TypePuck   ObjectType = 1
)

// Slots is the number of object grid slots per snapshot frame.
const Slots = 32

// Size is the ring length; the low 8 bits of packet id select an entry.
const Size = 256

// Frame is one snapshot's worth of object slots; a nil entry means the
// slot was unoccupied at that frame.
type Frame [Slots]*SnapshotObject

// Ring is a fixed-size history of Frames indexed by packetId & 0xFF.
type Ring struct {
	frames [Size]Frame
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{}
}

// Put writes obj into the slot-th position of the frame for packetID,
// overwriting whatever was previously tagged with that low-8-bit index.
func (r *Ring) Put(packetID uint32, slot int, obj *SnapshotObject) {
	r.frames[packetID&0xFF][slot] = obj
}

// ClearFrame empties every slot of the frame for packetID before a fresh
// snapshot is written into it.
func (r *Ring) ClearFrame(packetID uint32) {
	r.frames[packetID&0xFF] = Frame{}
}

// Get returns the object previously written for packetID/slot, and
// whether the frame stored at packetID's low byte holds an object in that
// slot (the caller must separately track which packetID last wrote each slot
// if it needs to distinguish "never written" from "overwritten by a
// later, same-indexed frame" -- per §4.4 the ring's freshness window is
// exactly 256 frames, so any referenced id older than that has already
// been overwritten and Get degrades to returning the newer frame).
func (r *Ring) Get(packetID uint32, slot int) (*SnapshotObject, bool) {
	obj := r.frames[packetID&0xFF][slot]
	return obj, obj != nil
}
