// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxMemberIDLen = 64

var (
	ErrInvalidMemberID = errors.New("invalid member id")
	ErrMemberExists    = errors.New("member already in room")
)

// MemberID names one participant's session within a room.
type MemberID string

func NewMemberID() MemberID { return MemberID(uuid.NewString()) }

// ParseMemberID accepts a client supplied member id, or generates one when raw is empty.
func ParseMemberID(raw string) (MemberID, error) {
	if raw == "" {
		return NewMemberID(), nil
	}
	if len(raw) > MaxMemberIDLen {
		return "", ErrInvalidMemberID
	}
	return MemberID(raw), nil
}
