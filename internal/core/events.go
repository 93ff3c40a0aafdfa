package core

import (
	"encoding/json"

	"github.com/dkeye/VideoChat/internal/domain"
)

// Event names carried in Event.Type.
const (
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventICECandidate     = "ice-candidate"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventJoined           = "joined"
	EventLeft             = "left"
	EventError            = "error"
	EventPing             = "ping"
	EventPong             = "pong"
)

// Event is the JSON envelope used in both directions on the signaling socket.
// Payload holds negotiation data and is never decoded by the relay.
type Event struct {
	Type     string            `json:"type"`
	RoomID   domain.RoomID     `json:"roomId,omitempty"`
	MemberID domain.MemberID   `json:"memberId,omitempty"`
	Members  []domain.MemberID `json:"members,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// IsNegotiation reports whether the event type is relayed between room members.
func IsNegotiation(t string) bool {
	switch t {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}

// EncodeNegotiation builds the outbound frame for a relayed event. The
// payload bytes are copied as received; json.Marshal would compact them.
func EncodeNegotiation(eventType string, payload json.RawMessage) (Frame, error) {
	head, err := json.Marshal(eventType)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(head)+len(payload)+24)
	buf = append(buf, `{"type":`...)
	buf = append(buf, head...)
	if len(payload) > 0 {
		buf = append(buf, `,"payload":`...)
		buf = append(buf, payload...)
	}
	buf = append(buf, '}')
	return buf, nil
}
