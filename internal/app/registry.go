package app

import (
	"context"
	"sync"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session *core.Session
	Cancel  context.CancelFunc
}

// Registry tracks live signaling sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomID]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomID]map[core.SessionID]struct{}),
	}
}

func (r *Registry) BindSignal(sess *core.Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		if room, _, joined := e.Session.Membership(); joined {
			r.detachLocked(room, sid)
		}
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

type regSnap struct {
	SID     core.SessionID
	Session *core.Session
}

// Attach indexes sid under room so room-mate lookups do not scan every session.
func (r *Registry) Attach(room domain.RoomID, sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[core.SessionID]struct{}, 2)
		r.rooms[room] = set
	}
	set[sid] = struct{}{}
}

func (r *Registry) Detach(room domain.RoomID, sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(room, sid)
}

func (r *Registry) detachLocked(room domain.RoomID, sid core.SessionID) {
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(room, "")
}

func (r *Registry) membersLocked(room domain.RoomID, skip core.SessionID) []regSnap {
	set := r.rooms[room]
	out := make([]regSnap, 0, len(set))
	for sid := range set {
		if sid == skip {
			continue
		}
		if e, ok := r.sessions[sid]; ok {
			out = append(out, regSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// RoomMates returns the other sessions attached to the room sid is joined to.
func (r *Registry) RoomMates(sid core.SessionID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	room, _, ok := e.Session.Membership()
	if !ok {
		return nil
	}
	return r.membersLocked(room, sid)
}

// Cancel cancels the connection context of sid, which tears the transport down.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
