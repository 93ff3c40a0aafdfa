package signal

import (
	"errors"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

var errBadPayload = errors.New("bad payload")

// Error codes sent to clients in error events.
const (
	CodeRoomFull      = "room_full"
	CodeMemberExists  = "member_exists"
	CodeAlreadyJoined = "already_joined"
	CodeInvalidRoom   = "invalid_room"
	CodeInvalidMember = "invalid_member"
	CodeBadPayload    = "bad_payload"
	CodeInternal      = "internal"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, domain.ErrMemberExists):
		return CodeMemberExists
	case errors.Is(err, core.ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, domain.ErrInvalidRoomID):
		return CodeInvalidRoom
	case errors.Is(err, domain.ErrInvalidMemberID):
		return CodeInvalidMember
	case errors.Is(err, errBadPayload):
		return CodeBadPayload
	}
	return CodeInternal
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, err error) {
	ctl.sendJSON(c, core.Event{Type: core.EventError, Error: errorCode(err)})
}
