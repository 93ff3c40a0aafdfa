package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxRoomIDLen = 64

var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrRoomFull      = errors.New("room is full")
)

type RoomID string

// NewRoomID returns a fresh globally unique room identifier.
func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

// ParseRoomID validates an identifier received from a client.
func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" || len(raw) > MaxRoomIDLen {
		return "", ErrInvalidRoomID
	}
	return RoomID(raw), nil
}
