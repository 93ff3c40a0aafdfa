package signal

import (
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/rs/zerolog/log"
)

// handleNegotiation relays offer, answer and ice-candidate events to the
// other member of the room. The payload is opaque to the relay.
func (ctl *SignalWSController) handleNegotiation(
	sid core.SessionID,
	_ *WsSignalConn,
	ev core.Event,
) {
	n := ctl.Orch.Relay(sid, ev)
	log.Debug().
		Str("module", "signal").
		Str("sid", string(sid)).
		Str("type", ev.Type).
		Int("targets", n).
		Msg("negotiation relayed")
}
