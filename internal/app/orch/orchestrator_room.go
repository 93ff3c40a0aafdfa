package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinResult describes the room a session ended up in.
type JoinResult struct {
	Room    domain.RoomID
	Member  domain.MemberID
	Members []domain.MemberID
}

// Join adds sid to room as member and tells the other members about it.
// A non-empty offer is forwarded to them as an offer event afterwards.
func (o *Orchestrator) Join(sid core.SessionID, room domain.RoomID, member domain.MemberID, offer json.RawMessage) (JoinResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return JoinResult{}, core.ErrSessionClosed
	}
	if err := sess.CanJoin(); err != nil {
		return JoinResult{}, err
	}
	if _, err := o.Rooms.AddMember(room, member); err != nil {
		return JoinResult{}, fmt.Errorf("join %s: %w", room, err)
	}
	if err := sess.Join(room, member); err != nil {
		o.Rooms.RemoveMember(room, member)
		return JoinResult{}, err
	}
	o.Registry.Attach(room, sid)
	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room_id", string(room)).
		Str("member_id", string(member)).
		Msg("added to room")

	mates := o.roomMates(sid)
	o.broadcast(mates, core.Event{Type: core.EventUserConnected, MemberID: member})
	if len(offer) > 0 {
		o.broadcastNegotiation(mates, core.EventOffer, offer)
	}
	return JoinResult{Room: room, Member: member, Members: o.Rooms.Members(room)}, nil
}

// Leave drops sid's room association and keeps the connection open.
// A non-empty room that does not match the session's room is ignored.
func (o *Orchestrator) Leave(sid core.SessionID, room domain.RoomID) (domain.RoomID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return "", false
	}
	current, _, joined := sess.Membership()
	if !joined || (room != "" && room != current) {
		return "", false
	}
	mates := o.roomMates(sid)
	current, member, ok := sess.Leave()
	if !ok {
		return "", false
	}
	o.retract(sid, current, member, mates)
	return current, true
}

// OnDisconnect releases everything held by sid. Safe to call more than once.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	mates := o.roomMates(sid)
	room, member, joined, first := sess.Close()
	if !first {
		return
	}
	if joined {
		o.retract(sid, room, member, mates)
	}
	o.Registry.Cancel(sid)
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) retract(sid core.SessionID, room domain.RoomID, member domain.MemberID, mates []*core.Session) {
	o.Registry.Detach(room, sid)
	left := o.Rooms.RemoveMember(room, member)
	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room_id", string(room)).
		Str("member_id", string(member)).
		Int("remaining", left).
		Msg("removed from room")
	o.broadcast(mates, core.Event{Type: core.EventUserDisconnected, MemberID: member})
}
