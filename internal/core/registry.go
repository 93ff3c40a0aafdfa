package core

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRoomCapacity   = 2
	DefaultReservationTTL = 30 * time.Second
)

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"member_count"`
}

type roomEntry struct {
	members   map[domain.MemberID]struct{}
	createdAt time.Time
	// reservedUntil is set when matchmaking hands out a one-member room;
	// the room is not offered again until someone joins or it expires.
	reservedUntil time.Time
}

// RoomRegistry maps room ids to member sets.
// Every operation takes the same lock, so matchmaking and membership
// changes are serialized relative to each other.
type RoomRegistry struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*roomEntry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type RegistryOption func(*RoomRegistry)

// WithCapacity sets the max member count per room. Zero disables the check.
func WithCapacity(n int) RegistryOption {
	return func(r *RoomRegistry) { r.capacity = n }
}

func WithReservationTTL(d time.Duration) RegistryOption {
	return func(r *RoomRegistry) { r.ttl = d }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func NewRoomRegistry(opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		rooms:    make(map[domain.RoomID]*roomEntry),
		capacity: DefaultRoomCapacity,
		ttl:      DefaultReservationTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure creates an empty room if id is unknown. It reports whether a room was created.
func (r *RoomRegistry) Ensure(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(id)
}

func (r *RoomRegistry) ensureLocked(id domain.RoomID) bool {
	if _, ok := r.rooms[id]; ok {
		return false
	}
	r.rooms[id] = &roomEntry{
		members:   make(map[domain.MemberID]struct{}),
		createdAt: r.now(),
	}
	log.Debug().Str("module", "core.rooms").Str("room_id", string(id)).Msg("room created")
	return true
}

// AddMember adds member to room, creating the room if needed, and returns
// the resulting member count.
func (r *RoomRegistry) AddMember(id domain.RoomID, member domain.MemberID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if ok {
		if _, dup := room.members[member]; dup {
			return len(room.members), domain.ErrMemberExists
		}
		if r.capacity > 0 && len(room.members) >= r.capacity {
			return len(room.members), domain.ErrRoomFull
		}
	} else {
		r.ensureLocked(id)
		room = r.rooms[id]
	}

	room.members[member] = struct{}{}
	room.reservedUntil = time.Time{}
	log.Info().
		Str("module", "core.rooms").
		Str("room_id", string(id)).
		Str("member_id", string(member)).
		Int("count", len(room.members)).
		Msg("member added")
	return len(room.members), nil
}

// RemoveMember removes member and deletes the room once it is empty.
// Unknown rooms and members are ignored. It returns the remaining count.
func (r *RoomRegistry) RemoveMember(id domain.RoomID, member domain.MemberID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return 0
	}
	if _, ok := room.members[member]; !ok {
		return len(room.members)
	}
	delete(room.members, member)
	left := len(room.members)
	if left == 0 {
		delete(r.rooms, id)
	}
	log.Info().
		Str("module", "core.rooms").
		Str("room_id", string(id)).
		Str("member_id", string(member)).
		Int("count", left).
		Bool("deleted", left == 0).
		Msg("member removed")
	return left
}

// AvailableRoom returns a room with exactly one member that is not already
// reserved by a pending matchmaking request. Which room is returned when
// several qualify is unspecified.
func (r *RoomRegistry) AvailableRoom() (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableLocked()
}

func (r *RoomRegistry) availableLocked() (domain.RoomID, bool) {
	now := r.now()
	for id, room := range r.rooms {
		if len(room.members) == 1 && !now.Before(room.reservedUntil) {
			return id, true
		}
	}
	return "", false
}

// FindOrCreate is the atomic matchmaking step: it returns an available room
// (reserving it for the caller) or ensures a fresh one named by newID.
func (r *RoomRegistry) FindOrCreate(newID func() domain.RoomID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.availableLocked(); ok {
		r.rooms[id].reservedUntil = r.now().Add(r.ttl)
		return id, false
	}
	id := newID()
	for !r.ensureLocked(id) {
		id = newID()
	}
	return id, true
}

// Prune drops rooms that were created by matchmaking but never joined
// within the reservation ttl. It returns how many rooms were removed.
func (r *RoomRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := r.now().Add(-r.ttl)
	n := 0
	for id, room := range r.rooms {
		if len(room.members) == 0 && room.createdAt.Before(deadline) {
			delete(r.rooms, id)
			n++
		}
	}
	if n > 0 {
		log.Debug().Str("module", "core.rooms").Int("pruned", n).Msg("pruned unused rooms")
	}
	return n
}

func (r *RoomRegistry) Exists(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[id]
	return ok
}

// Joinable reports whether id exists and has space for another member.
func (r *RoomRegistry) Joinable(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return ok && (r.capacity <= 0 || len(room.members) < r.capacity)
}

func (r *RoomRegistry) Count(id domain.RoomID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[id]; ok {
		return len(room.members)
	}
	return 0
}

// Members returns the sorted member ids of a room.
func (r *RoomRegistry) Members(id domain.RoomID) []domain.MemberID {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil
	}
	out := make([]domain.MemberID, 0, len(room.members))
	for m := range room.members {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func (r *RoomRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *RoomRegistry) List() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(room.members)})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
