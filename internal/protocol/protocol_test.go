package protocol

import (
	"testing"

	"hqm_server/internal/eventlog"
	"hqm_server/internal/objectring"
)

func TestInfoRequestRoundTrip(t *testing.T) {
	var p Protocol
	want := InfoRequest{Version: Version, Nonce: 0xdeadbeef}
	got, err := p.DecodeInfoRequest(p.EncodeInfoRequest(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestJoinRoundTripPreservesName(t *testing.T) {
	var p Protocol
	want := Join{Version: Version, Name: "Gretzky"}
	got, err := p.DecodeJoin(p.EncodeJoin(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestUpdateRoundTripWithoutChat(t *testing.T) {
	var p Protocol
	want := Update{
		GameID: 7,
		Inputs: ClientInputs{StickAngle: 1.5, Turn: -0.25, FwdBack: 1, StickX: 0.1, StickY: 0.2, HeadRot: 0, BodyRot: 0},
		Keys:   1 << 2,
		LastAckedPacket: 40,
		MsgIndex:        3,
	}
	got, err := p.DecodeUpdate(p.EncodeUpdate(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GameID != want.GameID || got.Keys != want.Keys || got.MsgIndex != want.MsgIndex {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Chat != nil {
		t.Fatalf("expected no chat, got %q", got.Chat)
	}
}

func TestUpdateRoundTripWithChat(t *testing.T) {
	var p Protocol
	want := Update{
		GameID:       1,
		ChatRepIndex: 5,
		Chat:         []byte("gg wp"),
	}
	got, err := p.DecodeUpdate(p.EncodeUpdate(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.Chat) != string(want.Chat) || got.ChatRepIndex != want.ChatRepIndex {
		t.Fatalf("got chat=%q rep=%d, want chat=%q rep=%d", got.Chat, got.ChatRepIndex, want.Chat, want.ChatRepIndex)
	}
}

func TestInfoResponseRoundTrip(t *testing.T) {
	var p Protocol
	want := InfoResponse{Version: Version, Nonce: 99, PlayerCount: 6, TeamSize: 5, Name: "Rink 1"}
	got, err := p.DecodeInfoResponse(p.EncodeInfoResponse(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNewMatchRoundTrip(t *testing.T) {
	var p Protocol
	id, err := p.DecodeNewMatch(p.EncodeNewMatch(42))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 42 {
		t.Fatalf("got %d, want 42", id)
	}
}

// TestGameUpdateRoundTripIsByteIdentical covers Testable Property 3: a
// fully decoded-then-re-encoded snapshot must reproduce the same bytes
// when every object slot is written as absolute (this server's only
// emission mode).
func TestGameUpdateRoundTripIsByteIdentical(t *testing.T) {
	var p Protocol

	var objs [objectring.Slots]*objectring.SnapshotObject
	objs[0] = &objectring.SnapshotObject{
		Type: objectring.TypePlayer,
		PosX: 1000, PosY: 2000, PosZ: 3000,
		RotA: 123456, RotB: 654321,
		StickX: 10, StickY: 20, StickZ: 30,
		StickRotA: 111, StickRotB: 222,
		HeadRotInt: 20000, BodyRotInt: 21000,
	}
	objs[5] = &objectring.SnapshotObject{
		Type: objectring.TypePuck,
		PosX: 500, PosY: 600, PosZ: 700,
		RotA: 1, RotB: 2,
	}

	want := GameUpdate{
		GameUpdateHeader: GameUpdateHeader{
			GameID: 9, Simstep: 12345, GameOver: false,
			RedScore: 2, BlueScore: 1, TimeLeft: 600, Timeout: 0,
			Period: 2, YourSlot: 0, PacketID: 77, ReferencedPacket: 76,
		},
		Objects: objs,
		BaseMsg: 4,
		Events: []eventlog.Event{
			eventlog.GoalEvent(eventlog.TeamRed, 0, -1),
			eventlog.ChatEvent(-1, "faceoff"),
		},
	}

	encoded1 := p.EncodeGameUpdate(want)
	var noOld [objectring.Slots]*objectring.SnapshotObject
	decoded, err := p.DecodeGameUpdate(encoded1, noOld)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	encoded2 := p.EncodeGameUpdate(decoded)

	if len(encoded1) != len(encoded2) {
		t.Fatalf("re-encoded length = %d, want %d", len(encoded2), len(encoded1))
	}
	for i := range encoded1 {
		if encoded1[i] != encoded2[i] {
			t.Fatalf("byte %d differs: %#x != %#x", i, encoded1[i], encoded2[i])
		}
	}
}

func TestGameUpdateNilSlotsStayNil(t *testing.T) {
	var p Protocol
	var objs [objectring.Slots]*objectring.SnapshotObject
	want := GameUpdate{
		GameUpdateHeader: GameUpdateHeader{GameID: 1, PacketID: 1, ReferencedPacket: 0},
		Objects:          objs,
	}
	data := p.EncodeGameUpdate(want)
	var noOld [objectring.Slots]*objectring.SnapshotObject
	got, err := p.DecodeGameUpdate(data, noOld)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, o := range got.Objects {
		if o != nil {
			t.Fatalf("slot %d: expected nil object, got %+v", i, o)
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var p Protocol
	data := p.EncodeInfoRequest(InfoRequest{Version: Version})
	data[0] = 'X'
	if _, err := p.DecodeInfoRequest(data); err == nil {
		t.Fatalf("expected error for corrupted magic")
	}
}
