package orch

import (
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/rs/zerolog/log"
)

// Relay forwards a negotiation event from sid to the other members of its
// room, payload untouched. Sessions without a room are ignored, as are
// events that name a room other than the session's own.
// Relay does not take the orchestrator lock; only membership changes do.
func (o *Orchestrator) Relay(sid core.SessionID, ev core.Event) int {
	if !core.IsNegotiation(ev.Type) {
		return 0
	}

	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return 0
	}
	room, _, joined := sess.Membership()
	if !joined || (ev.RoomID != "" && ev.RoomID != room) {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", ev.Type).Msg("relay ignored: no active room")
		return 0
	}

	mates := o.roomMates(sid)
	o.broadcastNegotiation(mates, ev.Type, ev.Payload)
	return len(mates)
}
