package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

// OnMediaToggle stores a mute/camera flag and tells every other member.
// Toggles from users not in the room are dropped.
func (o *Orchestrator) OnMediaToggle(ch domain.ChannelID, user domain.UserID, flag domain.MediaFlag, value bool) bool {
	others, ok := o.Rooms.UpdateMediaState(ch, user, flag, value)
	if !ok {
		log.Debug().Str("module", "orch").Str("channel", string(ch)).Str("user", string(user)).
			Str("flag", string(flag)).Msg("media toggle for absent member dropped")
		return false
	}
	frame, err := core.Encode(core.MediaFlagChanged{
		Type:      core.KindMediaChanged,
		ChannelID: ch,
		UserID:    user,
		Flag:      flag,
		Value:     value,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode media-flag-changed")
		return false
	}
	o.fanOut(ch, others, frame)
	return true
}
