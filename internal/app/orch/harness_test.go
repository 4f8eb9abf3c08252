package orch

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/devcord-rt/internal/app"
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (r *recorder) TrySend(f core.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() {}

// take returns the decoded frames received so far and forgets them.
func (r *recorder) take(t *testing.T) []map[string]any {
	t.Helper()
	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	r.mu.Unlock()

	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("decode %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

type harness struct {
	reg   *app.Registry
	rooms *app.RoomManager
	o     *Orchestrator
	recs  map[core.ConnID]*recorder
}

func newHarness() *harness {
	reg := app.NewRegistry(nil)
	rooms := app.NewRoomManager(reg)
	return &harness{
		reg:   reg,
		rooms: rooms,
		o:     New(reg, rooms, app.NewChatRelay(reg, rooms)),
		recs:  make(map[core.ConnID]*recorder),
	}
}

func (h *harness) connect(t *testing.T, user string) core.ConnID {
	t.Helper()
	rec := &recorder{}
	id := h.reg.Register(rec)
	if err := h.reg.Bind(id, domain.User{ID: domain.UserID(user), Username: user}); err != nil {
		t.Fatalf("bind %s: %v", user, err)
	}
	h.recs[id] = rec
	return id
}

func (h *harness) join(t *testing.T, ch, user string, conn core.ConnID) {
	t.Helper()
	err := h.o.OnJoinVoice(JoinRequest{Channel: domain.ChannelID(ch), User: domain.UserID(user), Conn: conn})
	if err != nil {
		t.Fatalf("%s joins %s: %v", user, ch, err)
	}
}

func (h *harness) take(t *testing.T, conn core.ConnID) []map[string]any {
	t.Helper()
	return h.recs[conn].take(t)
}

// drain forgets everything delivered so far.
func (h *harness) drain(t *testing.T) {
	for id := range h.recs {
		h.take(t, id)
	}
}

func (h *harness) totalSends(t *testing.T) int {
	n := 0
	for id := range h.recs {
		n += len(h.take(t, id))
	}
	return n
}

func expectEvents(t *testing.T, who string, got []map[string]any, want ...[2]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d events %v, want %d", who, len(got), got, len(want))
	}
	for i, w := range want {
		if got[i]["type"] != w[0] || got[i]["userId"] != w[1] {
			t.Errorf("%s: event %d = %v, want %s{%s}", who, i, got[i], w[0], w[1])
		}
	}
}

func memberIDs(h *harness, ch string) map[domain.UserID]core.ConnID {
	out := map[domain.UserID]core.ConnID{}
	for uid, m := range h.rooms.VoiceMembers(domain.ChannelID(ch)) {
		out[uid] = m.ConnID
	}
	return out
}
