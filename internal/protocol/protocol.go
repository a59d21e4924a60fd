// Package protocol implements encoding and decoding of every C->S and
// S->C datagram defined by the wire protocol (§4.3), including the
// embedded delta-position object snapshot and event framing (§4.7).
package protocol

import (
	"fmt"

	"hqm_server/internal/bitio"
	"hqm_server/internal/eventlog"
	"hqm_server/internal/objectring"
)

// Magic is the 4-byte datagram header every message begins with.
var Magic = [4]byte{'H', 'o', 'c', 'k'}

// Version is the interoperability gate byte; INFO_REQUEST/JOIN datagrams
// carrying any other value are silently dropped (§6).
const Version = 55

// Client (C->S) command codes.
const (
	CmdInfoRequest uint8 = 0
	CmdJoin        uint8 = 2
	CmdUpdate      uint8 = 4
	CmdExit        uint8 = 7
)

// Server (S->C) command codes.
const (
	CmdInfoResponse uint8 = 1
	CmdGameUpdate   uint8 = 5
	CmdNewMatch     uint8 = 6
)

// NameFieldLen is the fixed NUL-padded ASCII width for player/server names.
const NameFieldLen = 32

// MaxEventsPerFrame is the 4-bit event count ceiling per GAME_UPDATE
// (§4.7: at most 15 events per snapshot).
const MaxEventsPerFrame = 15

// Codec bundles a BitCodec-backed reader/writer pair. It carries no state
// of its own; every method is a pure function of its arguments.
type Codec struct{}

// Protocol is the zero-value entry point for encode/decode calls.
type Protocol struct{}

func writeHeader(w *bitio.Writer, cmd uint8) {
	w.WriteBytesAligned(Magic[:])
	w.WriteU8Aligned(cmd)
}

// readHeader validates the magic and returns the command code. err is
// MalformedDatagram-shaped per §7 when the magic does not match or the
// datagram is too short.
func readHeader(r *bitio.Reader) (cmd uint8, err error) {
	if r.BitLength() < 40 {
		return 0, fmt.Errorf("protocol: %w: datagram too short for header", bitio.ErrTruncated)
	}
	magic := r.ReadBytesAligned(4)
	for i := range Magic {
		if magic[i] != Magic[i] {
			return 0, fmt.Errorf("protocol: bad magic")
		}
	}
	return r.ReadU8Aligned(), nil
}

func padName(name string) []byte {
	b := make([]byte, NameFieldLen)
	copy(b, name)
	return b
}

func unpadName(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// --- C->S: INFO_REQUEST ---

type InfoRequest struct {
	Version uint8
	Nonce    uint32
}

func (Protocol) EncodeInfoRequest(m InfoRequest) []byte {
	w := bitio.NewWriter(16)
	writeHeader(w, CmdInfoRequest)
	w.WriteU8Aligned(m.Version)
	w.WriteU32Aligned(m.Nonce)
	return w.Bytes()
}

func (Protocol) DecodeInfoRequest(data []byte) (InfoRequest, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return InfoRequest{}, err
	}
	if cmd != CmdInfoRequest {
		return InfoRequest{}, fmt.Errorf("protocol: unexpected command %d", cmd)
	}
	return InfoRequest{
		Version: r.ReadU8Aligned(),
		Nonce:   r.ReadU32Aligned(),
	}, nil
}

// --- C->S: JOIN ---

type Join struct {
	Version uint8
	Name    string
}

func (Protocol) EncodeJoin(m Join) []byte {
	w := bitio.NewWriter(40)
	writeHeader(w, CmdJoin)
	w.WriteU8Aligned(m.Version)
	w.WriteBytesAligned(padName(m.Name))
	return w.Bytes()
}

func (Protocol) DecodeJoin(data []byte) (Join, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return Join{}, err
	}
	if cmd != CmdJoin {
		return Join{}, fmt.Errorf("protocol: unexpected command %d", cmd)
	}
	version := r.ReadU8Aligned()
	name := unpadName(r.ReadBytesAligned(NameFieldLen))
	return Join{Version: version, Name: name}, nil
}

// --- C->S: EXIT ---

func (Protocol) EncodeExit() []byte {
	w := bitio.NewWriter(8)
	writeHeader(w, CmdExit)
	return w.Bytes()
}

// --- C->S: UPDATE ---

// ClientInputs is the eight single-precision input floats carried by
// every UPDATE datagram, in wire order.
type ClientInputs struct {
	StickAngle float32
	Turn       float32
	Reserved   float32
	FwdBack    float32
	StickX     float32
	StickY     float32
	HeadRot    float32
	BodyRot    float32
}

type Update struct {
	GameID          uint32
	Inputs          ClientInputs
	Keys            uint32
	LastAckedPacket uint32
	MsgIndex        uint16
	ChatRepIndex    uint8 // only meaningful if Chat != nil
	Chat            []byte
}

func (Protocol) EncodeUpdate(m Update) []byte {
	w := bitio.NewWriter(64)
	writeHeader(w, CmdUpdate)
	w.WriteU32Aligned(m.GameID)
	for _, f := range []float32{
		m.Inputs.StickAngle, m.Inputs.Turn, m.Inputs.Reserved, m.Inputs.FwdBack,
		m.Inputs.StickX, m.Inputs.StickY, m.Inputs.HeadRot, m.Inputs.BodyRot,
	} {
		w.WriteFloatAligned(f)
	}
	w.WriteU32Aligned(m.Keys)
	w.WriteU32Aligned(m.LastAckedPacket)
	w.WriteU16Aligned(m.MsgIndex)

	if m.Chat != nil {
		w.WriteUnsigned(1, 1)
		w.WriteUnsigned(3, uint32(m.ChatRepIndex))
		length := len(m.Chat)
		if length > 127 {
			length = 127
		}
		w.WriteU8Aligned(uint8(length))
		for i := 0; i < length; i++ {
			w.WriteUnsigned(7, uint32(m.Chat[i]))
		}
	} else {
		w.WriteUnsigned(1, 0)
	}
	return w.Bytes()
}

func (Protocol) DecodeUpdate(data []byte) (Update, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return Update{}, err
	}
	if cmd != CmdUpdate {
		return Update{}, fmt.Errorf("protocol: unexpected command %d", cmd)
	}
	var m Update
	m.GameID = r.ReadU32Aligned()
	floats := make([]float32, 8)
	for i := range floats {
		floats[i] = r.ReadFloatAligned()
	}
	m.Inputs = ClientInputs{
		StickAngle: floats[0], Turn: floats[1], Reserved: floats[2], FwdBack: floats[3],
		StickX: floats[4], StickY: floats[5], HeadRot: floats[6], BodyRot: floats[7],
	}
	m.Keys = r.ReadU32Aligned()
	m.LastAckedPacket = r.ReadU32Aligned()
	m.MsgIndex = r.ReadU16Aligned()

	if r.ReadUnsigned(1) == 1 {
		m.ChatRepIndex = uint8(r.ReadUnsigned(3))
		length := int(r.ReadU8Aligned())
		chat := make([]byte, length)
		for i := 0; i < length; i++ {
			chat[i] = byte(r.ReadUnsigned(7))
		}
		m.Chat = chat
	}
	return m, nil
}

// --- S->C: INFO_RESPONSE ---

type InfoResponse struct {
	Version     uint8
	Nonce       uint32
	PlayerCount uint8
	TeamSize    uint8 // low 4 bits
	Name        string
}

func (Protocol) EncodeInfoResponse(m InfoResponse) []byte {
	w := bitio.NewWriter(48)
	writeHeader(w, CmdInfoResponse)
	w.WriteU8Aligned(m.Version)
	w.WriteU32Aligned(m.Nonce)
	w.WriteU8Aligned(m.PlayerCount)
	w.WriteUnsigned(4, 0)
	w.WriteUnsigned(4, uint32(m.TeamSize&0xF))
	w.WriteBytesAligned(padName(m.Name))
	return w.Bytes()
}

func (Protocol) DecodeInfoResponse(data []byte) (InfoResponse, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return InfoResponse{}, err
	}
	if cmd != CmdInfoResponse {
		return InfoResponse{}, fmt.Errorf("protocol: unexpected command %d", cmd)
	}
	var m InfoResponse
	m.Version = r.ReadU8Aligned()
	m.Nonce = r.ReadU32Aligned()
	m.PlayerCount = r.ReadU8Aligned()
	_ = r.ReadUnsigned(4)
	m.TeamSize = uint8(r.ReadUnsigned(4))
	m.Name = unpadName(r.ReadBytesAligned(NameFieldLen))
	return m, nil
}

// --- S->C: NEW_MATCH ---

func (Protocol) EncodeNewMatch(gameID uint32) []byte {
	w := bitio.NewWriter(16)
	writeHeader(w, CmdNewMatch)
	w.WriteU32Aligned(gameID)
	return w.Bytes()
}

func (Protocol) DecodeNewMatch(data []byte) (uint32, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return 0, err
	}
	if cmd != CmdNewMatch {
		return 0, fmt.Errorf("protocol: unexpected command %d", cmd)
	}
	return r.ReadU32Aligned(), nil
}

// --- S->C: GAME_UPDATE ---

// GameUpdateHeader is the fixed-shape prefix of a GAME_UPDATE datagram.
type GameUpdateHeader struct {
	GameID           uint32
	Simstep          uint32
	GameOver         bool
	RedScore         uint8
	BlueScore        uint8
	TimeLeft         uint16
	Timeout          uint16
	Period           uint8
	YourSlot         uint8
	PacketID         uint32
	ReferencedPacket uint32
}

// GameUpdate is a full decoded snapshot datagram: header, one optional
// object per slot, and a window of events.
type GameUpdate struct {
	GameUpdateHeader
	Objects [objectring.Slots]*objectring.SnapshotObject
	BaseMsg uint16
	Events  []eventlog.Event
}

// bitWidths for the delta-position fields, by name, per §4.4/§4.3.
const (
	posBits      = 17
	rotBits      = 31
	stickPosBits = 13
	stickRotBits = 25
	headBodyBits = 16
)

// EncodeGameUpdate serializes a full snapshot. Every position field is
// written as an absolute value (discriminant 3); per Design Note (iii)
// this server never emits the relative discriminants.
func (Protocol) EncodeGameUpdate(m GameUpdate) []byte {
	w := bitio.NewWriter(256)
	writeHeader(w, CmdGameUpdate)
	w.WriteU32Aligned(m.GameID)
	w.WriteU32Aligned(m.Simstep)
	if m.GameOver {
		w.WriteUnsigned(1, 1)
	} else {
		w.WriteUnsigned(1, 0)
	}
	w.WriteU8Aligned(m.RedScore)
	w.WriteU8Aligned(m.BlueScore)
	w.WriteU16Aligned(m.TimeLeft)
	w.WriteU16Aligned(m.Timeout)
	w.WriteU8Aligned(m.Period)
	w.WriteU8Aligned(m.YourSlot)
	w.WriteU32Aligned(m.PacketID)
	w.WriteU32Aligned(m.ReferencedPacket)

	for _, obj := range m.Objects {
		if obj == nil {
			w.WriteUnsigned(1, 0)
			continue
		}
		w.WriteUnsigned(1, 1)
		w.WriteUnsigned(2, uint32(obj.Type))
		w.WritePosAbsolute(posBits, obj.PosX)
		w.WritePosAbsolute(posBits, obj.PosY)
		w.WritePosAbsolute(posBits, obj.PosZ)
		w.WritePosAbsolute(rotBits, obj.RotA)
		w.WritePosAbsolute(rotBits, obj.RotB)
		if obj.Type == objectring.TypePlayer {
			w.WritePosAbsolute(stickPosBits, obj.StickX)
			w.WritePosAbsolute(stickPosBits, obj.StickY)
			w.WritePosAbsolute(stickPosBits, obj.StickZ)
			w.WritePosAbsolute(stickRotBits, obj.StickRotA)
			w.WritePosAbsolute(stickRotBits, obj.StickRotB)
			w.WritePosAbsolute(headBodyBits, obj.HeadRotInt)
			w.WritePosAbsolute(headBodyBits, obj.BodyRotInt)
		}
	}

	events := m.Events
	if len(events) > MaxEventsPerFrame {
		events = events[:MaxEventsPerFrame]
	}
	w.WriteUnsigned(4, uint32(len(events)))
	w.WriteU16Aligned(m.BaseMsg)
	for _, ev := range events {
		encodeEvent(w, ev)
	}
	return w.Bytes()
}

func encodeEvent(w *bitio.Writer, ev eventlog.Event) {
	w.WriteUnsigned(6, uint32(ev.Type))
	switch ev.Type {
	case eventlog.TypeJoinExit:
		w.WriteUnsigned(6, uint32(ev.PlayerSlot))
		if ev.Joined {
			w.WriteUnsigned(1, 1)
		} else {
			w.WriteUnsigned(1, 0)
		}
		w.WriteUnsignedOrMinusOne(2, int32(ev.Team))
		w.WriteUnsignedOrMinusOne(6, int32(ev.ObjectSlot))
		name := padNameBits(ev.Text, 31)
		for _, c := range name {
			w.WriteUnsigned(7, uint32(c))
		}
	case eventlog.TypeGoal:
		w.WriteUnsignedOrMinusOne(2, int32(ev.Team))
		w.WriteUnsignedOrMinusOne(6, int32(ev.ScorerSlot))
		w.WriteUnsignedOrMinusOne(6, int32(ev.AssisterSlot))
	case eventlog.TypeChat:
		w.WriteUnsignedOrMinusOne(6, int32(ev.AuthorSlot))
		length := len(ev.Text)
		if length > 63 {
			length = 63
		}
		w.WriteUnsigned(6, uint32(length))
		for i := 0; i < length; i++ {
			w.WriteUnsigned(7, uint32(ev.Text[i]))
		}
	}
}

// padNameBits truncates/pads s to exactly n 7-bit ASCII characters.
func padNameBits(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

// DecodeGameUpdate parses a full snapshot. old supplies the previously
// known value for each position field of each slot (nil entries mean
// "no reference", triggering §7 UnreferencedDelta on a relative field);
// it is only consulted when the datagram carries a non-absolute
// discriminant -- this server always writes absolute, but a conforming
// reader must still support all four per the decoder contract.
func (Protocol) DecodeGameUpdate(data []byte, old [objectring.Slots]*objectring.SnapshotObject) (GameUpdate, error) {
	r := bitio.NewReader(data)
	cmd, err := readHeader(r)
	if err != nil {
		return GameUpdate{}, err
	}
	if cmd != CmdGameUpdate {
		return GameUpdate{}, fmt.Errorf("protocol: unexpected command %d", cmd)
	}

	var m GameUpdate
	m.GameID = r.ReadU32Aligned()
	m.Simstep = r.ReadU32Aligned()
	m.GameOver = r.ReadUnsigned(1) == 1
	m.RedScore = r.ReadU8Aligned()
	m.BlueScore = r.ReadU8Aligned()
	m.TimeLeft = r.ReadU16Aligned()
	m.Timeout = r.ReadU16Aligned()
	m.Period = r.ReadU8Aligned()
	m.YourSlot = r.ReadU8Aligned()
	m.PacketID = r.ReadU32Aligned()
	m.ReferencedPacket = r.ReadU32Aligned()

	for i := 0; i < objectring.Slots; i++ {
		if r.ReadUnsigned(1) == 0 {
			continue
		}
		obj := &objectring.SnapshotObject{}
		obj.Type = objectring.ObjectType(r.ReadUnsigned(2))

		var oldObj *objectring.SnapshotObject
		if old[i] != nil {
			oldObj = old[i]
		}
		obj.PosX, _ = readPosField(r, posBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.PosX })
		obj.PosY, _ = readPosField(r, posBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.PosY })
		obj.PosZ, _ = readPosField(r, posBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.PosZ })
		obj.RotA, _ = readPosField(r, rotBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.RotA })
		obj.RotB, _ = readPosField(r, rotBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.RotB })

		if obj.Type == objectring.TypePlayer {
			obj.StickX, _ = readPosField(r, stickPosBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.StickX })
			obj.StickY, _ = readPosField(r, stickPosBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.StickY })
			obj.StickZ, _ = readPosField(r, stickPosBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.StickZ })
			obj.StickRotA, _ = readPosField(r, stickRotBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.StickRotA })
			obj.StickRotB, _ = readPosField(r, stickRotBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.StickRotB })
			obj.HeadRotInt, _ = readPosField(r, headBodyBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.HeadRotInt })
			obj.BodyRotInt, _ = readPosField(r, headBodyBits, oldObj, func(o *objectring.SnapshotObject) uint32 { return o.BodyRotInt })
		}
		m.Objects[i] = obj
	}

	eventCount := int(r.ReadUnsigned(4))
	m.BaseMsg = r.ReadU16Aligned()
	for i := 0; i < eventCount; i++ {
		ev, err := decodeEvent(r)
		if err != nil {
			return m, err
		}
		m.Events = append(m.Events, ev)
	}
	return m, nil
}

// readPosField reads one delta-position field of the given width,
// resolving the "old" reference via accessor if oldObj is non-nil.
func readPosField(r *bitio.Reader, width int, oldObj *objectring.SnapshotObject, accessor func(*objectring.SnapshotObject) uint32) (uint32, bool) {
	var oldPtr *uint32
	if oldObj != nil {
		v := accessor(oldObj)
		oldPtr = &v
	}
	return r.ReadPos(width, oldPtr)
}

func decodeEvent(r *bitio.Reader) (eventlog.Event, error) {
	tag := eventlog.Type(r.ReadUnsigned(6))
	switch tag {
	case eventlog.TypeJoinExit:
		slot := int(r.ReadUnsigned(6))
		joined := r.ReadUnsigned(1) == 1
		team := eventlog.Team(r.ReadUnsignedOrMinusOne(2))
		objSlot := int(r.ReadUnsignedOrMinusOne(6))
		name := readAsciiBits(r, 31)
		return eventlog.Event{
			Type: eventlog.TypeJoinExit, PlayerSlot: slot, Joined: joined,
			Team: team, ObjectSlot: objSlot, Text: name,
		}, nil
	case eventlog.TypeGoal:
		team := eventlog.Team(r.ReadUnsignedOrMinusOne(2))
		scorer := int(r.ReadUnsignedOrMinusOne(6))
		assister := int(r.ReadUnsignedOrMinusOne(6))
		return eventlog.GoalEvent(team, scorer, assister), nil
	case eventlog.TypeChat:
		author := int(r.ReadUnsignedOrMinusOne(6))
		length := int(r.ReadUnsigned(6))
		text := readAsciiBits(r, length)
		return eventlog.ChatEvent(author, text), nil
	default:
		return eventlog.Event{}, fmt.Errorf("protocol: unknown event tag %d", tag)
	}
}

func readAsciiBits(r *bitio.Reader, n int) string {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(r.ReadUnsigned(7))
	}
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end])
}
