package signal

import "github.com/dkeye/VideoChat/internal/core"

func (ctl *SignalWSController) handlePing(
	_ core.SessionID,
	conn *WsSignalConn,
	_ core.Event,
) {
	ctl.sendJSON(conn, core.Event{Type: core.EventPong})
}
