// Package transport implements the single UDP socket reactor: datagram
// ingress, per-address rate limiting, the 10ms tick timer, and snapshot
// fan-out over a single non-blocking UDP socket, with one authoritative
// tick goroutine owning match state (connection table, sync.Map rate
// limiters, worker-pool send dispatch).
package transport

import (
	"context"
	"log"
	"net"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hqm_server/internal/config"
	"hqm_server/internal/match"
	"hqm_server/internal/metrics"
	"hqm_server/internal/protocol"
	"hqm_server/internal/session"
	"hqm_server/internal/vecmath"
)

// Server owns the UDP socket and drives the Match from a single
// goroutine, per §5: "a single goroutine owning the Match/Scheduler
// state, fed by a bounded channel of decoded inbound events."
type Server struct {
	cfg     *config.Config
	conn    *net.UDPConn
	match   *match.Match
	metrics *metrics.Registry
	codec   protocol.Protocol

	limiters sync.Map // map[string]*rate.Limiter

	inbound chan inboundDatagram
	sendPool *sendPool
}

type inboundDatagram struct {
	addr *net.UDPAddr
	data []byte
}

// New constructs a transport Server bound to cfg's network settings. It
// does not open the socket; call Listen for that.
func New(cfg *config.Config, m *match.Match, reg *metrics.Registry) *Server {
	return &Server{
		cfg:     cfg,
		match:   m,
		metrics: reg,
		inbound: make(chan inboundDatagram, 1024),
	}
}

// Listen opens the UDP socket with SO_REUSEADDR/SO_RCVBUF/SO_SNDBUF
// tuning (see socket_unix.go) and starts the read-pump goroutine. The
// returned error is non-nil only for a bind failure.
func (s *Server) Listen() error {
	addr := &net.UDPAddr{IP: net.ParseIP(s.cfg.Network.BindHost), Port: s.cfg.Network.BindPort}
	lc := net.ListenConfig{Control: tuneSocket(s.cfg.Network.ReadBufferSize, s.cfg.Network.WriteBufferSize)}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr.String())
	if err != nil {
		return err
	}
	s.conn = pc.(*net.UDPConn)
	s.sendPool = newSendPool(s.conn, runtime.NumCPU(), s.metrics)
	go s.readLoop()
	log.Printf("🚀 hqm server listening on %s", s.conn.LocalAddr())
	return nil
}

func (s *Server) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("❌ udp read error: %v", err)
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.inbound <- inboundDatagram{addr: addr, data: data}
	}
}

// Run drives the tick scheduler and the inbound-datagram drain loop
// until ctx is cancelled. This is the single authoritative goroutine
// that mutates Match state (§5).
func (s *Server) Run(ctx context.Context) {
	tickInterval := time.Second / time.Duration(s.cfg.Game.TickRate)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case dg := <-s.inbound:
			s.handleDatagram(dg.addr, dg.data)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) handleDatagram(addr *net.UDPAddr, data []byte) {
	if !s.allow(addr) {
		s.metrics.DropDatagram(metrics.ReasonRateLimited)
		return
	}
	if len(data) < 5 {
		s.metrics.DropDatagram(metrics.ReasonMalformedDatagram)
		return
	}
	cmd := data[4]
	switch cmd {
	case protocol.CmdInfoRequest:
		s.handleInfoRequest(addr, data)
	case protocol.CmdJoin:
		s.handleJoin(addr, data)
	case protocol.CmdUpdate:
		s.handleUpdate(addr, data)
	case protocol.CmdExit:
		s.handleExit(addr)
	default:
		s.metrics.DropDatagram(metrics.ReasonMalformedDatagram)
	}
}

func (s *Server) allow(addr *net.UDPAddr) bool {
	key := addr.String()
	v, _ := s.limiters.LoadOrStore(key, rate.NewLimiter(
		rate.Limit(s.cfg.Network.RateLimitMsgSec),
		s.cfg.Network.RateLimitBurst,
	))
	return v.(*rate.Limiter).Allow()
}

func (s *Server) handleInfoRequest(addr *net.UDPAddr, data []byte) {
	req, err := s.codec.DecodeInfoRequest(data)
	if err != nil {
		s.metrics.DropDatagram(metrics.ReasonMalformedDatagram)
		return
	}
	if req.Version != s.cfg.Game.Version {
		s.metrics.DropDatagram(metrics.ReasonBadVersion)
		return
	}
	resp := s.codec.EncodeInfoResponse(protocol.InfoResponse{
		Version:     s.cfg.Game.Version,
		Nonce:       req.Nonce,
		PlayerCount: uint8(s.match.Roster.Count()),
		TeamSize:    uint8(s.cfg.Game.TeamMaxSize),
		Name:        s.cfg.Game.ServerName,
	})
	s.conn.WriteToUDP(resp, addr)
}

func (s *Server) handleJoin(addr *net.UDPAddr, data []byte) {
	join, err := s.codec.DecodeJoin(data)
	if err != nil {
		s.metrics.DropDatagram(metrics.ReasonMalformedDatagram)
		return
	}
	if join.Version != s.cfg.Game.Version {
		s.metrics.DropDatagram(metrics.ReasonBadVersion)
		return
	}
	if sess := s.match.Roster.FindByAddr(addr); sess != nil {
		sess.ResetInactivity()
		return
	}
	sess, ok := s.match.Roster.Add(addr, join.Name)
	if !ok {
		s.metrics.DropDatagram(metrics.ReasonRosterFull)
		return
	}
	s.match.Events.Append(joinEvent(sess))
	s.metrics.EventsAppended.Inc()
	if s.match.Roster.Count() == 1 {
		s.match.StartNewGame()
	}
	s.match.SpawnPlayerObject(sess, vecmath.Vec3{X: s.match.RinkWidth() / 2, Y: 1, Z: 2})
}

func (s *Server) handleUpdate(addr *net.UDPAddr, data []byte) {
	sess := s.match.Roster.FindByAddr(addr)
	if sess == nil {
		s.metrics.DropDatagram(metrics.ReasonUnknownSession)
		return
	}
	upd, err := s.codec.DecodeUpdate(data)
	if err != nil {
		s.metrics.DropDatagram(metrics.ReasonMalformedDatagram)
		return
	}
	sess.ResetInactivity()
	if upd.GameID != 0 && upd.GameID != s.match.GameID {
		s.metrics.DropDatagram(metrics.ReasonGameIDMismatch)
		return
	}
	sess.GameID = upd.GameID
	sess.Inputs.StickAngle = upd.Inputs.StickAngle
	sess.Inputs.Turn = upd.Inputs.Turn
	sess.Inputs.FwdBack = upd.Inputs.FwdBack
	sess.Inputs.StickX = upd.Inputs.StickX
	sess.Inputs.StickY = upd.Inputs.StickY
	sess.Inputs.HeadRot = upd.Inputs.HeadRot
	sess.Inputs.BodyRot = upd.Inputs.BodyRot
	sess.Inputs.Keys = upd.Keys
	if int64(upd.LastAckedPacket) > sess.LastAckedPacket {
		sess.LastAckedPacket = int64(upd.LastAckedPacket)
	}
	if upd.Chat != nil {
		if upd.ChatRepIndex != sess.ChatRepIndex {
			sess.ChatRepIndex = upd.ChatRepIndex
			s.match.Events.Append(chatEvent(sess, string(upd.Chat)))
			s.metrics.EventsAppended.Inc()
		}
	}
}

func (s *Server) handleExit(addr *net.UDPAddr) {
	sess := s.match.Roster.FindByAddr(addr)
	if sess == nil {
		return
	}
	s.match.Events.Append(exitEvent(sess))
	s.metrics.EventsAppended.Inc()
	if sess.ObjectSlot >= 0 {
		s.match.ReleaseObject(sess.ObjectSlot)
	}
	s.match.Roster.Remove(sess.Slot)
}

func (s *Server) tick() {
	start := time.Now()
	snapshot := s.match.Tick()
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	s.metrics.ActiveSessions.Set(float64(s.match.Roster.Count()))

	if !snapshot {
		return
	}
	s.match.TickInactivity()
	s.match.Roster.Each(func(sess *session.Session) {
		s.sendSnapshot(sess)
	})
}

func (s *Server) sendSnapshot(sess *session.Session) {
	addr := sess.Addr.(*net.UDPAddr)
	if sess.GameID != s.match.GameID {
		s.sendPool.Enqueue(addr, s.codec.EncodeNewMatch(s.match.GameID))
		sess.GameID = s.match.GameID
		return
	}
	gu := s.match.BuildGameUpdate(sess)
	s.match.AdvanceSessionCursor(sess, int(gu.BaseMsg), len(gu.Events))
	s.sendPool.Enqueue(addr, s.codec.EncodeGameUpdate(gu))
	s.metrics.SnapshotsSent.Inc()
}
