package app

import (
	"context"
	"time"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Matchmaker hands out rooms to participants looking for a partner.
type Matchmaker struct {
	Rooms *core.RoomRegistry
	NewID func() domain.RoomID
}

func NewMatchmaker(rooms *core.RoomRegistry) *Matchmaker {
	return &Matchmaker{Rooms: rooms, NewID: domain.NewRoomID}
}

// FindOrCreateRoom returns a room that has one participant waiting, or a
// fresh empty room when nobody is waiting.
func (m *Matchmaker) FindOrCreateRoom() domain.RoomID {
	id, created := m.Rooms.FindOrCreate(m.NewID)
	log.Info().
		Str("module", "app.matchmaker").
		Str("room_id", string(id)).
		Bool("created", created).
		Msg("matched")
	return id
}

// Run prunes rooms that were handed out but never joined, until ctx is done.
func (m *Matchmaker) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = core.DefaultReservationTTL
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Rooms.Prune()
		}
	}
}
