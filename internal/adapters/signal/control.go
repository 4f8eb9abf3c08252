package signal

import (
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

func (ctl *SignalWSController) handlePing(s *session, _ []byte) {
	resp := struct {
		Type core.EventKind `json:"type"`
	}{
		Type: core.KindPong,
	}
	ctl.sendJSON(s, resp)
}

func (ctl *SignalWSController) handleWhoAmI(s *session, _ []byte) {
	resp := struct {
		Type      core.EventKind     `json:"type"`
		ConnID    core.ConnID        `json:"connId"`
		User      domain.User        `json:"user"`
		VoiceRoom domain.ChannelID   `json:"voiceRoom,omitempty"`
		ChatRooms []domain.ChannelID `json:"chatRooms"`
	}{
		Type:      core.KindWhoAmI,
		ConnID:    s.id,
		User:      s.user,
		ChatRooms: []domain.ChannelID{},
	}
	if snap, ok := ctl.Orch.Registry.Lookup(s.id); ok {
		resp.VoiceRoom = snap.VoiceRoom
		if snap.ChatRooms != nil {
			resp.ChatRooms = snap.ChatRooms
		}
	}
	ctl.sendJSON(s, resp)
}
