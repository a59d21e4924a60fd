package transport

import (
	"net"
	"testing"

	"hqm_server/internal/config"
	"hqm_server/internal/match"
	"hqm_server/internal/metrics"
	"hqm_server/internal/protocol"
	"hqm_server/internal/rink"
)

func newTestServer() *Server {
	cfg := config.Load()
	cfg.Network.RateLimitMsgSec = 1000
	cfg.Network.RateLimitBurst = 1000
	m := match.New(rink.New(rink.DefaultWidth, rink.DefaultLength, rink.DefaultCorner), cfg.Game.StickHand)
	return New(cfg, m, metrics.New())
}

func TestHandleJoinAddsSessionAndStartsMatch(t *testing.T) {
	s := newTestServer()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000}

	var p protocol.Protocol
	data := p.EncodeJoin(protocol.Join{Version: s.cfg.Game.Version, Name: "Alice"})
	s.handleJoin(addr, data)

	sess := s.match.Roster.FindByAddr(addr)
	if sess == nil {
		t.Fatalf("expected session to be added")
	}
	if sess.ObjectSlot < 0 {
		t.Fatalf("expected a spawned player object")
	}
	if s.match.GameID == 0 {
		t.Fatalf("expected StartNewGame to have run for the first joiner")
	}
}

func TestHandleJoinRejectsBadVersion(t *testing.T) {
	s := newTestServer()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4001}
	var p protocol.Protocol
	data := p.EncodeJoin(protocol.Join{Version: s.cfg.Game.Version + 1, Name: "Eve"})
	s.handleJoin(addr, data)
	if s.match.Roster.FindByAddr(addr) != nil {
		t.Fatalf("session should not be added with a bad version byte")
	}
}

func TestHandleUpdateAppliesInputsAndAck(t *testing.T) {
	s := newTestServer()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4002}
	var p protocol.Protocol
	s.handleJoin(addr, p.EncodeJoin(protocol.Join{Version: s.cfg.Game.Version, Name: "Bob"}))
	sess := s.match.Roster.FindByAddr(addr)

	upd := protocol.Update{
		GameID:          s.match.GameID,
		Inputs:          protocol.ClientInputs{Turn: 0.5},
		Keys:            1 << 2,
		LastAckedPacket: 7,
	}
	s.handleUpdate(addr, p.EncodeUpdate(upd))

	if sess.Inputs.Turn != 0.5 {
		t.Fatalf("Turn = %v, want 0.5", sess.Inputs.Turn)
	}
	if sess.Inputs.Keys != 1<<2 {
		t.Fatalf("Keys = %#x, want %#x", sess.Inputs.Keys, 1<<2)
	}
	if sess.LastAckedPacket != 7 {
		t.Fatalf("LastAckedPacket = %d, want 7", sess.LastAckedPacket)
	}
}

func TestHandleUpdateDropsGameIDMismatch(t *testing.T) {
	s := newTestServer()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4003}
	var p protocol.Protocol
	s.handleJoin(addr, p.EncodeJoin(protocol.Join{Version: s.cfg.Game.Version, Name: "Carl"}))
	sess := s.match.Roster.FindByAddr(addr)
	sess.Inputs.Turn = 0

	upd := protocol.Update{GameID: s.match.GameID + 99, Inputs: protocol.ClientInputs{Turn: 0.9}}
	s.handleUpdate(addr, p.EncodeUpdate(upd))

	if sess.Inputs.Turn != 0 {
		t.Fatalf("update with mismatched game id should have been dropped, Turn = %v", sess.Inputs.Turn)
	}
}

func TestHandleExitRemovesSessionAndReleasesObject(t *testing.T) {
	s := newTestServer()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4004}
	var p protocol.Protocol
	s.handleJoin(addr, p.EncodeJoin(protocol.Join{Version: s.cfg.Game.Version, Name: "Dan"}))

	s.handleExit(addr)

	if s.match.Roster.FindByAddr(addr) != nil {
		t.Fatalf("session should have been removed on exit")
	}
}

func TestRateLimiterBlocksBurstOverflow(t *testing.T) {
	s := newTestServer()
	s.cfg.Network.RateLimitMsgSec = 1
	s.cfg.Network.RateLimitBurst = 1
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4005}

	if !s.allow(addr) {
		t.Fatalf("first datagram should be allowed")
	}
	if s.allow(addr) {
		t.Fatalf("second immediate datagram should be rate limited")
	}
}
