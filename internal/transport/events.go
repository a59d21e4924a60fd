package transport

import (
	"hqm_server/internal/eventlog"
	"hqm_server/internal/session"
)

func joinEvent(sess *session.Session) eventlog.Event {
	return eventlog.JoinExitEvent(sess.Slot, true, eventlog.Team(sess.Team), sess.ObjectSlot)
}

func exitEvent(sess *session.Session) eventlog.Event {
	return eventlog.JoinExitEvent(sess.Slot, false, eventlog.Team(sess.Team), sess.ObjectSlot)
}

func chatEvent(sess *session.Session, text string) eventlog.Event {
	return eventlog.ChatEvent(sess.Slot, text)
}
