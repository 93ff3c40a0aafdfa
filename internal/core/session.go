package core

import (
	"errors"
	"sync"

	"github.com/dkeye/VideoChat/internal/domain"
)

type SessionID string

type SessionState int

const (
	StateIdle SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrAlreadyJoined = errors.New("session already joined a room")
	ErrSessionClosed = errors.New("session closed")
)

// Session is one connected client's signaling channel.
// It moves Idle -> Joined -> Idle on explicit leave, and to Closed exactly once.
type Session struct {
	id     SessionID
	signal SignalConnection

	mu     sync.RWMutex
	state  SessionState
	room   domain.RoomID
	member domain.MemberID
}

func NewSession(id SessionID, signal SignalConnection) *Session {
	return &Session{id: id, signal: signal}
}

func (s *Session) ID() SessionID            { return s.id }
func (s *Session) Signal() SignalConnection { return s.signal }

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Membership returns the room and member association while Joined.
func (s *Session) Membership() (domain.RoomID, domain.MemberID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateJoined {
		return "", "", false
	}
	return s.room, s.member, true
}

// CanJoin reports the error Join would return, without changing state.
func (s *Session) CanJoin() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canJoinLocked()
}

func (s *Session) canJoinLocked() error {
	switch s.state {
	case StateJoined:
		return ErrAlreadyJoined
	case StateClosed:
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) Join(room domain.RoomID, member domain.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.canJoinLocked(); err != nil {
		return err
	}
	s.state = StateJoined
	s.room = room
	s.member = member
	return nil
}

// Leave returns to Idle and hands back the association that was dropped.
// ok is false when the session was not Joined.
func (s *Session) Leave() (room domain.RoomID, member domain.MemberID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateJoined {
		return "", "", false
	}
	room, member = s.room, s.member
	s.state = StateIdle
	s.room, s.member = "", ""
	return room, member, true
}

// Close moves the session to Closed. first is false if it was already closed;
// joined reports whether room and member still need to be retracted.
func (s *Session) Close() (room domain.RoomID, member domain.MemberID, joined, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return "", "", false, false
	}
	joined = s.state == StateJoined
	room, member = s.room, s.member
	s.state = StateClosed
	s.room, s.member = "", ""
	return room, member, joined, true
}
