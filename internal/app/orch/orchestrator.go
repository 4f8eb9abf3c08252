// Package orch coordinates voice rooms: the signaling broker and the
// disconnect reconciler. It mutates room state only through app.RoomManager
// and reaches connections only through app.Registry.
package orch

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/app"
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Chat     *app.ChatRelay

	// Now stamps JoinedAt; defaults to time.Now.
	Now func() time.Time
}

func New(reg *app.Registry, rooms *app.RoomManager, chat *app.ChatRelay) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Chat:     chat,
		Now:      time.Now,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// fanOut sends frame to every member of a snapshot taken by the caller.
// Members whose connection is gone are pruned from ch afterwards, which in
// turn announces their departure to the rest.
func (o *Orchestrator) fanOut(ch domain.ChannelID, members []core.VoiceMember, frame core.Frame) int {
	sent := 0
	var stale []core.VoiceMember
	for _, m := range members {
		err := o.Registry.Send(m.ConnID, frame)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, core.ErrNotFound):
			stale = append(stale, m)
		}
	}
	for _, m := range stale {
		log.Info().Str("module", "orch").Str("channel", string(ch)).Str("user", string(m.UserID)).
			Str("conn", string(m.ConnID)).Msg("pruning voice member with dead connection")
		o.leave(ch, m.UserID, m.ConnID)
	}
	return sent
}

func (o *Orchestrator) notifyLeft(ch domain.ChannelID, user domain.UserID, to []core.VoiceMember) {
	frame, err := core.Encode(core.PeerLeft{Type: core.KindPeerLeft, ChannelID: ch, UserID: user})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode peer-left")
		return
	}
	n := o.fanOut(ch, to, frame)
	log.Debug().Str("module", "orch").Str("channel", string(ch)).Str("user", string(user)).Int("sent_to", n).Msg("peer-left broadcast")
}

// leave removes user from ch while still bound to conn and tells the
// remaining members. It reports whether anything was removed.
func (o *Orchestrator) leave(ch domain.ChannelID, user domain.UserID, conn core.ConnID) bool {
	_, remaining, ok := o.Rooms.LeaveVoiceConn(ch, user, conn)
	if !ok {
		return false
	}
	o.Registry.ClearVoice(conn, ch)
	o.notifyLeft(ch, user, remaining)
	return true
}
