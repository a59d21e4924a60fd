package match

import (
	"net"
	"testing"

	"hqm_server/internal/eventlog"
	"hqm_server/internal/rink"
	"hqm_server/internal/session"
	"hqm_server/internal/vecmath"
)

func newTestMatch() *Match {
	r := rink.New(rink.DefaultWidth, rink.DefaultLength, rink.DefaultCorner)
	return New(r, 1)
}

func TestStartNewGameResetsStateAndSpawnsPuck(t *testing.T) {
	m := newTestMatch()
	sess, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Alice")
	sess.Team = session.TeamRed

	m.RedScore, m.BlueScore, m.Period = 3, 1, 2
	m.StartNewGame()

	if m.RedScore != 0 || m.BlueScore != 0 || m.Period != 0 {
		t.Fatalf("scores/period not reset: %+v", m)
	}
	if m.TimeLeft != StartingTimeLeft {
		t.Fatalf("timeleft = %d, want %d", m.TimeLeft, StartingTimeLeft)
	}
	if sess.GameID != 0 {
		t.Fatalf("existing session's GameID should be reset to force NEW_MATCH")
	}

	found := false
	for i := range m.grid {
		if m.grid[i].occupied && m.grid[i].kind == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a spawned puck in the object grid")
	}

	if m.Events.Len() == 0 {
		t.Fatalf("expected a re-emitted join event for the existing roster")
	}
}

func TestApplyTeamChangeUsesKeyBits(t *testing.T) {
	m := newTestMatch()
	sess, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Bob")
	m.ApplyTeamChange(sess, 1<<2)
	if sess.Team != session.TeamRed {
		t.Fatalf("team = %v, want TeamRed", sess.Team)
	}
	m.ApplyTeamChange(sess, 0)
	if sess.Team != session.TeamRed {
		t.Fatalf("team changed with no key bits set: %v", sess.Team)
	}
}

func TestTickAdvancesSimstepAndEmitsEverySecondTick(t *testing.T) {
	m := newTestMatch()
	m.StartNewGame()

	snapshots := 0
	for i := 0; i < 10; i++ {
		if m.Tick() {
			snapshots++
		}
	}
	if m.Simstep != 10 {
		t.Fatalf("simstep = %d, want 10", m.Simstep)
	}
	if snapshots != 5 {
		t.Fatalf("snapshots = %d, want 5", snapshots)
	}
}

func TestTimeLeftWrapsAtZero(t *testing.T) {
	m := newTestMatch()
	m.StartNewGame()
	m.TimeLeft = 0
	m.Tick()
	if m.TimeLeft != StartingTimeLeft {
		t.Fatalf("timeleft after wrap = %d, want %d", m.TimeLeft, StartingTimeLeft)
	}
}

func TestBuildGameUpdateReflectsSpawnedObjects(t *testing.T) {
	m := newTestMatch()
	sess, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Alice")
	m.StartNewGame()
	m.SpawnPlayerObject(sess, vecmath.Vec3{X: 15, Y: 0.75, Z: 10})
	m.Tick()
	m.Tick()

	gu := m.BuildGameUpdate(sess)
	if gu.YourSlot != uint8(sess.Slot) {
		t.Fatalf("YourSlot = %d, want %d", gu.YourSlot, sess.Slot)
	}
	if gu.Objects[sess.ObjectSlot] == nil {
		t.Fatalf("expected a snapshot object at the player's object slot")
	}
}

func TestApplyGoalUpdatesScoreAndCounters(t *testing.T) {
	m := newTestMatch()
	scorer, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Scorer")
	assister, _ := m.Roster.Add(&net.UDPAddr{Port: 2}, "Assister")

	m.ApplyGoal(eventlog.TeamRed, scorer.Slot, assister.Slot)

	if m.RedScore != 1 {
		t.Fatalf("RedScore = %d, want 1", m.RedScore)
	}
	if scorer.GoalCount != 1 || assister.AssistCount != 1 {
		t.Fatalf("counters not updated: scorer=%d assister=%d", scorer.GoalCount, assister.AssistCount)
	}
}

func TestTickInactivityEvictsStaleSessions(t *testing.T) {
	m := newTestMatch()
	sess, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Ghost")
	for i := 0; i < session.InactivityEvictTicks; i++ {
		m.TickInactivity()
	}
	if m.Roster.Get(sess.Slot) != nil {
		t.Fatalf("session not evicted after inactivity threshold")
	}
}

func TestAdvanceSessionCursorIsMonotonic(t *testing.T) {
	m := newTestMatch()
	sess, _ := m.Roster.Add(&net.UDPAddr{Port: 1}, "Alice")
	m.AdvanceSessionCursor(sess, 5, 3)
	if sess.MsgIndex != 8 {
		t.Fatalf("MsgIndex = %d, want 8", sess.MsgIndex)
	}
	m.AdvanceSessionCursor(sess, 0, 2)
	if sess.MsgIndex != 8 {
		t.Fatalf("MsgIndex regressed to %d", sess.MsgIndex)
	}
}
