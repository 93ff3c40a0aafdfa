package signal

import (
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	ev core.Event,
) {
	room, err := domain.ParseRoomID(string(ev.RoomID))
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	member, err := domain.ParseMemberID(string(ev.MemberID))
	if err != nil {
		ctl.sendError(conn, err)
		return
	}

	res, err := ctl.Orch.Join(sid, room, member, ev.Payload)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(room)).Msg("join rejected")
		ctl.sendError(conn, err)
		return
	}

	ctl.sendJSON(conn, core.Event{
		Type:     core.EventJoined,
		RoomID:   res.Room,
		MemberID: res.Member,
		Members:  res.Members,
	})
}

func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
	ev core.Event,
) {
	room, ok := ctl.Orch.Leave(sid, ev.RoomID)
	if !ok {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("leave ignored: not in room")
		return
	}
	ctl.sendJSON(conn, core.Event{Type: core.EventLeft, RoomID: room})
}
