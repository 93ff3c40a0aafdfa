package orch

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires session events to room registry mutations.
// mu serializes join, leave and disconnect so that a membership change and
// the set of sessions notified about it are always consistent.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.RoomRegistry
	Policy   app.Policy

	mu sync.Mutex
}

func New(reg *app.Registry, rooms *core.RoomRegistry, policy app.Policy) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
}

// Send encodes ev and queues it on one session's signal connection.
func (o *Orchestrator) Send(sess *core.Session, ev core.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", ev.Type).Msg("marshal event")
		return
	}
	o.deliver(sess, frame)
}

func (o *Orchestrator) broadcast(targets []*core.Session, ev core.Event) {
	if len(targets) == 0 {
		return
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", ev.Type).Msg("marshal event")
		return
	}
	o.broadcastFrame(targets, frame)
}

func (o *Orchestrator) broadcastFrame(targets []*core.Session, frame core.Frame) {
	for _, sess := range targets {
		o.deliver(sess, frame)
	}
}

func (o *Orchestrator) broadcastNegotiation(targets []*core.Session, eventType string, payload json.RawMessage) {
	if len(targets) == 0 {
		return
	}
	frame, err := core.EncodeNegotiation(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", eventType).Msg("encode negotiation")
		return
	}
	o.broadcastFrame(targets, frame)
}

func (o *Orchestrator) deliver(sess *core.Session, frame core.Frame) {
	sig := sess.Signal()
	if sig == nil {
		return
	}
	err := sig.TrySend(frame)
	if err == nil || o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sess) {
	case app.KickMember:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Msg("kicking slow session")
		o.Registry.Cancel(sess.ID())
	case app.DropFrame, app.NoAction:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Msg("dropped frame")
	}
}

func (o *Orchestrator) roomMates(sid core.SessionID) []*core.Session {
	snaps := o.Registry.RoomMates(sid)
	out := make([]*core.Session, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Session)
	}
	return out
}
