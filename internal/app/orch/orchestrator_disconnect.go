package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
)

// OnDisconnect reconciles room state after a transport closed. Safe to call
// more than once and after an explicit leave.
func (o *Orchestrator) OnDisconnect(conn core.ConnID) {
	snap, ok := o.Registry.Unregister(conn)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Msg("disconnect: already reconciled")
		return
	}

	for _, ch := range snap.ChatRooms {
		o.Rooms.UnsubscribeChat(ch, conn)
	}

	left := false
	if snap.Bound && snap.VoiceRoom != "" {
		left = o.leave(snap.VoiceRoom, snap.User.ID, conn)
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(snap.User.ID)).
		Int("chat_rooms", len(snap.ChatRooms)).Str("voice_room", string(snap.VoiceRoom)).Bool("voice_left", left).
		Msg("disconnect reconciled")
}
