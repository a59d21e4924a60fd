package eventlog

import "testing"

func TestWindowRespectsMaxCount(t *testing.T) {
	l := New()
	for i := 0; i < 20; i++ {
		l.Append(ChatEvent(-1, "hi"))
	}
	base, events := l.Window(0, 15)
	if base != 0 || len(events) != 15 {
		t.Fatalf("got base=%d len=%d, want base=0 len=15", base, len(events))
	}
}

func TestWindowIdempotentApplication(t *testing.T) {
	l := New()
	l.Append(JoinExitEvent(0, true, TeamRed, 0))
	l.Append(GoalEvent(TeamRed, 0, -1))
	l.Append(ChatEvent(0, "gg"))

	applyCount := map[int]int{}
	msgIndex := 0
	// apply delivers the window starting at fromIdx; the client applies
	// only events at indices >= its own msgIndex (§4.7).
	apply := func(fromIdx int) int {
		base, events := l.Window(fromIdx, 15)
		for i := range events {
			idx := base + i
			if idx < msgIndex {
				continue
			}
			applyCount[idx]++
		}
		return base + len(events)
	}

	msgIndex = apply(msgIndex)
	// Re-delivery of the same window (simulating a dropped ack) must not
	// double-apply events already processed.
	apply(0)

	for idx, count := range applyCount {
		if count != 1 {
			t.Fatalf("event %d applied %d times, want 1", idx, count)
		}
	}
	if msgIndex != 3 {
		t.Fatalf("msgIndex = %d, want 3", msgIndex)
	}
}

func TestResetClearsLog(t *testing.T) {
	l := New()
	l.Append(ChatEvent(-1, "a"))
	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", l.Len())
	}
}
