package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dkeye/devcord-rt/internal/adapters/identity"
	"github.com/dkeye/devcord-rt/internal/app"
	"github.com/dkeye/devcord-rt/internal/app/orch"
)

const testSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

var testOptions = Options{
	ReadLimit:    1 << 15,
	PingPeriod:   5 * time.Second,
	PongWait:     10 * time.Second,
	WriteWait:    time.Second,
	SendBuffer:   16,
	RateLimit:    100,
	RateInterval: time.Second,
}

type testServer struct {
	*httptest.Server
	orch *orch.Orchestrator
	ctl  *SignalWSController
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry(nil)
	rooms := app.NewRoomManager(reg)
	o := orch.New(reg, rooms, app.NewChatRelay(reg, rooms))
	ctl := NewSignalWSController(o, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		u, err := identity.StaticIdentity{}.Resolve(c.Request)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctl.HandleSignal(ctx, c, u)
	})
	srv := &testServer{Server: httptest.NewServer(r), orch: o, ctl: ctl}
	t.Cleanup(func() {
		srv.Close()
		reg.CloseAll()
		cancel()
		ctl.Wait()
	})
	return srv
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func (s *testServer) dial(t *testing.T, user string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?id=" + user
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(v any) {
	c.t.Helper()
	if err := c.ws.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) sendRaw(s string) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) read() map[string]any {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m map[string]any
	if err := c.ws.ReadJSON(&m); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return m
}

// sync round-trips a ping and returns whatever arrived before the pong.
// Frames from one connection are handled in order, so everything sent
// earlier has been processed once it returns.
func (c *client) sync() []map[string]any {
	c.t.Helper()
	c.send(map[string]any{"type": "ping"})
	var before []map[string]any
	for {
		m := c.read()
		if m["type"] == "pong" {
			return before
		}
		before = append(before, m)
	}
}

func (c *client) expectQuiet() {
	c.t.Helper()
	if got := c.sync(); len(got) != 0 {
		c.t.Fatalf("unexpected frames %v", got)
	}
}

func TestVoiceScenarioOverWebSocket(t *testing.T) {
	srv := newTestServer(t, testOptions)
	a, b := srv.dial(t, "A"), srv.dial(t, "B")

	a.send(map[string]any{"type": "join-voice-room", "channelId": "V", "name": "Alice"})
	a.expectQuiet()

	b.send(map[string]any{"type": "join-voice-room", "channelId": "V", "userId": "spoofed"})
	b.expectQuiet()
	if m := a.read(); m["type"] != "peer-joined" || m["userId"] != "B" || m["channelId"] != "V" {
		t.Fatalf("A got %v", m)
	}

	offer := map[string]any{"type": "offer", "sdp": testSDP}
	b.send(map[string]any{"type": "signaling-offer", "target": "A", "payload": offer})
	m := a.read()
	if m["type"] != "signaling-offer" || m["source"] != "B" || m["target"] != "A" {
		t.Fatalf("A got %v", m)
	}
	if p, _ := m["payload"].(map[string]any); p["sdp"] != testSDP {
		t.Fatalf("payload changed: %v", m["payload"])
	}

	answer := map[string]any{"type": "answer", "sdp": testSDP}
	a.send(map[string]any{"type": "signaling-answer", "target": "B", "payload": answer})
	if m := b.read(); m["type"] != "signaling-answer" || m["source"] != "A" {
		t.Fatalf("B got %v", m)
	}

	b.send(map[string]any{"type": "signaling-ice-candidate", "target": "A", "payload": map[string]any{"candidate": "candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host", "sdpMid": "0"}})
	if m := a.read(); m["type"] != "signaling-ice-candidate" {
		t.Fatalf("A got %v", m)
	}

	b.send(map[string]any{"type": "toggle-media-flag", "flag": "muted", "value": true})
	if m := a.read(); m["type"] != "media-flag-changed" || m["userId"] != "B" || m["value"] != true {
		t.Fatalf("A got %v", m)
	}
	b.expectQuiet()

	_ = a.ws.Close()
	if m := b.read(); m["type"] != "peer-left" || m["userId"] != "A" {
		t.Fatalf("B got %v", m)
	}
	members := srv.orch.Rooms.VoiceMembers("V")
	if len(members) != 1 || members["B"].Name != "B" {
		t.Fatalf("members = %v", members)
	}
}

func TestInvalidSignalingIsDroppedSilently(t *testing.T) {
	srv := newTestServer(t, testOptions)
	a, b := srv.dial(t, "A"), srv.dial(t, "B")
	a.send(map[string]any{"type": "join-voice-room", "channelId": "V"})
	a.expectQuiet()
	b.send(map[string]any{"type": "join-voice-room", "channelId": "V"})
	b.expectQuiet()
	a.read() // peer-joined

	b.send(map[string]any{"type": "signaling-offer", "target": "A", "payload": map[string]any{"type": "answer", "sdp": testSDP}})
	b.send(map[string]any{"type": "signaling-offer", "target": "A", "payload": map[string]any{"type": "offer", "sdp": "garbage"}})
	b.send(map[string]any{"type": "signaling-offer", "target": "ghost", "payload": map[string]any{"type": "offer", "sdp": testSDP}})
	b.send(map[string]any{"type": "signaling-offer", "payload": map[string]any{"type": "offer", "sdp": testSDP}})
	b.expectQuiet()
	a.expectQuiet()
}

func TestChatOverWebSocket(t *testing.T) {
	srv := newTestServer(t, testOptions)
	a, b, c := srv.dial(t, "A"), srv.dial(t, "B"), srv.dial(t, "C")

	a.send(map[string]any{"type": "join-chat-room", "channelId": "general"})
	a.expectQuiet()
	b.send(map[string]any{"type": "join-chat-room", "channelId": "general"})
	b.expectQuiet()

	record := map[string]any{"_id": "m1", "content": "hi", "sender": "B"}
	b.send(map[string]any{"type": "publish-chat-event", "channelId": "general", "message": record})
	for name, cl := range map[string]*client{"A": a, "B": b} {
		m := cl.read()
		msg, _ := m["message"].(map[string]any)
		if m["type"] != "chat-event" || m["channelId"] != "general" || msg["content"] != "hi" {
			t.Fatalf("%s got %v", name, m)
		}
	}
	c.expectQuiet()

	a.send(map[string]any{"type": "leave-chat-room", "channelId": "general"})
	a.expectQuiet()
	b.send(map[string]any{"type": "publish-chat-event", "channelId": "general", "message": record})
	b.read()
	a.expectQuiet()
}

func TestControlErrors(t *testing.T) {
	srv := newTestServer(t, testOptions)
	a := srv.dial(t, "A")

	a.send(map[string]any{"type": "publish-chat-event", "channelId": "general", "message": "not an object"})
	if m := a.read(); m["type"] != "error" || m["error"] != "bad_message" {
		t.Fatalf("got %v", m)
	}
	a.send(map[string]any{"type": "join-chat-room"})
	if m := a.read(); m["type"] != "error" || m["error"] != "missing_channel" {
		t.Fatalf("got %v", m)
	}
	a.send(map[string]any{"type": "toggle-media-flag", "flag": "deafened", "value": true})
	if m := a.read(); m["type"] != "error" || m["error"] != "unknown_flag" {
		t.Fatalf("got %v", m)
	}
	a.send(map[string]any{"type": "join-voice-room", "channelId": 42})
	if m := a.read(); m["type"] != "error" || m["error"] != "bad_payload" {
		t.Fatalf("got %v", m)
	}

	// Garbage and unknown kinds are dropped without closing the connection.
	a.sendRaw("{not json")
	a.send(map[string]any{"type": "teleport"})
	a.expectQuiet()
}

func TestWhoAmI(t *testing.T) {
	srv := newTestServer(t, testOptions)
	a := srv.dial(t, "A")
	a.send(map[string]any{"type": "join-voice-room", "channelId": "V"})
	a.send(map[string]any{"type": "join-chat-room", "channelId": "general"})
	a.send(map[string]any{"type": "whoami"})

	m := a.read()
	user, _ := m["user"].(map[string]any)
	chats, _ := m["chatRooms"].([]any)
	if m["type"] != "whoami" || user["id"] != "A" || m["voiceRoom"] != "V" || len(chats) != 1 || m["connId"] == "" {
		t.Fatalf("got %v", m)
	}
}

func TestJoinRateLimit(t *testing.T) {
	opts := testOptions
	opts.RateLimit = 2
	opts.RateInterval = time.Minute
	srv := newTestServer(t, opts)
	a := srv.dial(t, "A")

	a.send(map[string]any{"type": "join-chat-room", "channelId": "c1"})
	a.send(map[string]any{"type": "join-chat-room", "channelId": "c2"})
	a.expectQuiet()
	a.send(map[string]any{"type": "join-voice-room", "channelId": "V"})
	if m := a.read(); m["type"] != "error" || m["error"] != "rate_limited" {
		t.Fatalf("got %v", m)
	}
	if len(srv.orch.Rooms.VoiceRooms()) != 0 {
		t.Fatal("rate limited join went through")
	}
}

func TestUnauthenticatedUpgradeIsRejected(t *testing.T) {
	srv := newTestServer(t, testOptions)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without identity succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v", resp)
	}
}
