package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/app/orch"
	"github.com/dkeye/VideoChat/internal/config"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadLimit:    64 * 1024,
		PingPeriod:   time.Second,
		PongWait:     5 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   16,
		MessageRate:  1000,
		MessageBurst: 1000,
	}
}

type relay struct {
	o   *orch.Orchestrator
	url string
}

func startRelay(t *testing.T) *relay {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	o := orch.New(app.NewRegistry(), core.NewRoomRegistry(), app.SimplePolicy{})
	ctl := NewSignalWSController(o, testConfig())

	r := gin.New()
	r.GET("/socket", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &relay{o: o, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (r *relay) dial(t *testing.T) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(ev core.Event) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(ev))
}

func (c *client) sendRaw(s string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (c *client) next() (core.Event, []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var ev core.Event
	require.NoError(c.t, json.Unmarshal(data, &ev))
	return ev, data
}

func (c *client) expect(eventType string) core.Event {
	c.t.Helper()
	ev, _ := c.next()
	require.Equal(c.t, eventType, ev.Type, "event %+v", ev)
	return ev
}

func (c *client) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := c.conn.ReadMessage()
	var ne interface{ Timeout() bool }
	require.True(c.t, errors.As(err, &ne) && ne.Timeout(), "unexpected frame %s (err %v)", data, err)
}

func (c *client) join(room domain.RoomID, member domain.MemberID) core.Event {
	c.t.Helper()
	c.send(core.Event{Type: core.EventJoinRoom, RoomID: room, MemberID: member})
	return c.expect(core.EventJoined)
}

func realOffer(t *testing.T) json.RawMessage {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	_, err = pc.CreateDataChannel("chat", nil)
	require.NoError(t, err)
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	raw, err := json.Marshal(offer)
	require.NoError(t, err)
	return raw
}

func TestSignal_PairingAndRelay(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t)
	b := r.dial(t)

	joined := a.join("R", "m1")
	assert.Equal(t, domain.RoomID("R"), joined.RoomID)
	assert.Equal(t, []domain.MemberID{"m1"}, joined.Members)

	joined = b.join("R", "m2")
	assert.Equal(t, []domain.MemberID{"m1", "m2"}, joined.Members)
	ev := a.expect(core.EventUserConnected)
	assert.Equal(t, domain.MemberID("m2"), ev.MemberID)

	offer := realOffer(t)
	a.sendRaw(fmt.Sprintf(`{"type":"offer","roomId":"R","payload":%s}`, offer))
	ev, _ = b.next()
	require.Equal(t, core.EventOffer, ev.Type)
	assert.Equal(t, []byte(offer), []byte(ev.Payload))

	var sd webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(ev.Payload, &sd))
	assert.Equal(t, webrtc.SDPTypeOffer, sd.Type)

	// Whitespace inside the payload survives the relay.
	answer := `{ "type": "answer",  "sdp": "v=0\r\n" }`
	b.sendRaw(`{"type":"answer","payload":` + answer + `}`)
	ev = a.expect(core.EventAnswer)
	assert.Equal(t, answer, string(ev.Payload))

	cand := `{"candidate":"candidate:1 1 udp 2130706431 10.0.0.2 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`
	a.sendRaw(`{"type":"ice-candidate","payload":` + cand + `}`)
	ev = b.expect(core.EventICECandidate)
	assert.Equal(t, cand, string(ev.Payload))

	require.NoError(t, b.conn.Close())
	ev = a.expect(core.EventUserDisconnected)
	assert.Equal(t, domain.MemberID("m2"), ev.MemberID)

	assert.Eventually(t, func() bool {
		return r.o.Rooms.Count("R") == 1 && r.o.Registry.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_RelayBeforeJoinIsIgnored(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t)
	b := r.dial(t)
	c := r.dial(t)
	a.join("R", "m1")
	b.join("R", "m2")
	a.expect(core.EventUserConnected)

	c.sendRaw(`{"type":"offer","roomId":"R","payload":{"sdp":"x"}}`)
	c.send(core.Event{Type: core.EventPing})
	c.expect(core.EventPong)

	a.expectSilence(200 * time.Millisecond)
	b.expectSilence(200 * time.Millisecond)
}

func TestSignal_JoinErrors(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t)
	b := r.dial(t)
	c := r.dial(t)

	a.join("R", "m1")
	a.send(core.Event{Type: core.EventJoinRoom, RoomID: "other"})
	assert.Equal(t, CodeAlreadyJoined, a.expect(core.EventError).Error)

	b.send(core.Event{Type: core.EventJoinRoom, RoomID: "R", MemberID: "m1"})
	assert.Equal(t, CodeMemberExists, b.expect(core.EventError).Error)

	b.send(core.Event{Type: core.EventJoinRoom})
	assert.Equal(t, CodeInvalidRoom, b.expect(core.EventError).Error)

	joined := b.join("R", "")
	assert.NotEmpty(t, joined.MemberID)
	a.expect(core.EventUserConnected)

	c.send(core.Event{Type: core.EventJoinRoom, RoomID: "R"})
	assert.Equal(t, CodeRoomFull, c.expect(core.EventError).Error)

	c.sendRaw(`{not json`)
	assert.Equal(t, CodeBadPayload, c.expect(core.EventError).Error)

	assert.Equal(t, 2, r.o.Rooms.Count("R"))
}

func TestSignal_LeaveAndRejoin(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t)
	b := r.dial(t)
	a.join("R", "m1")
	b.join("R", "m2")
	a.expect(core.EventUserConnected)

	a.send(core.Event{Type: core.EventLeaveRoom, RoomID: "R"})
	assert.Equal(t, domain.RoomID("R"), a.expect(core.EventLeft).RoomID)
	assert.Equal(t, domain.MemberID("m1"), b.expect(core.EventUserDisconnected).MemberID)

	// Leaving again from idle is a no-op, the next reply is the pong.
	a.send(core.Event{Type: core.EventLeaveRoom})
	a.send(core.Event{Type: core.EventPing})
	a.expect(core.EventPong)

	a.join("R", "m3")
	assert.Equal(t, domain.MemberID("m3"), b.expect(core.EventUserConnected).MemberID)
}

func TestSignal_UnknownTypeIgnored(t *testing.T) {
	r := startRelay(t)
	a := r.dial(t)
	a.send(core.Event{Type: "chat"})
	a.send(core.Event{Type: core.EventPing})
	a.expect(core.EventPong)
}

func TestSignal_ShutdownClosesConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	o := orch.New(app.NewRegistry(), core.NewRoomRegistry(), app.SimplePolicy{})
	ctl := NewSignalWSController(o, testConfig())
	r := gin.New()
	r.GET("/socket", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/socket", nil)
	require.NoError(t, err)
	defer conn.Close()
	c := &client{t: t, conn: conn}
	c.join("R", "m1")

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool {
		return o.Registry.Len() == 0 && !o.Rooms.Exists("R")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		domain.ErrRoomFull:                          CodeRoomFull,
		fmt.Errorf("join R: %w", domain.ErrRoomFull): CodeRoomFull,
		domain.ErrMemberExists:                      CodeMemberExists,
		core.ErrAlreadyJoined:                       CodeAlreadyJoined,
		domain.ErrInvalidRoomID:                     CodeInvalidRoom,
		domain.ErrInvalidMemberID:                   CodeInvalidMember,
		errBadPayload:                               CodeBadPayload,
		errors.New("boom"):                          CodeInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, errorCode(err), err.Error())
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/socket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	all := originChecker([]string{"*"})
	assert.True(t, all(req("https://evil.example")))
	assert.True(t, originChecker(nil)(req("https://evil.example")))

	only := originChecker([]string{"https://chat.example/", "http://localhost:3000"})
	assert.True(t, only(req("https://chat.example")))
	assert.True(t, only(req("HTTPS://Chat.Example")))
	assert.True(t, only(req("http://localhost:3000")))
	assert.True(t, only(req("")))
	assert.False(t, only(req("https://evil.example")))
	assert.False(t, only(req("https://chat.example.evil")))
}
