package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/app/orch"
	"github.com/dkeye/devcord-rt/internal/domain"
)

type joinVoicePayload struct {
	ChannelID domain.ChannelID `json:"channelId"`
	Name      string           `json:"name"`
	Avatar    string           `json:"avatar"`
	Muted     bool             `json:"muted"`
	CameraOff bool             `json:"cameraOff"`
}

// handleJoinVoice joins under the identity bound at connect time; a userId
// sent by the client is ignored.
func (ctl *SignalWSController) handleJoinVoice(s *session, data []byte) {
	var p joinVoicePayload
	if !ctl.decode(s, data, &p) {
		return
	}
	if p.ChannelID == "" {
		ctl.sendError(s, "missing_channel")
		return
	}
	if len(p.Name) > domain.MaxUsernameLen || len(p.Avatar) > domain.MaxAvatarLen {
		ctl.sendError(s, "bad_payload")
		return
	}
	if !ctl.limiter.Allow(s.id) {
		log.Warn().Str("module", "signal").Str("conn", string(s.id)).Msg("join-voice rate limited")
		ctl.sendError(s, "rate_limited")
		return
	}

	err := ctl.Orch.OnJoinVoice(orch.JoinRequest{
		Channel: p.ChannelID,
		User:    s.user.ID,
		Conn:    s.id,
		Name:    p.Name,
		Avatar:  p.Avatar,
		Media:   domain.MediaState{Muted: p.Muted, CameraOff: p.CameraOff},
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("join-voice dropped")
	}
}

func (ctl *SignalWSController) handleLeaveVoice(s *session, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	if !ctl.Orch.LeaveVoiceFrom(s.id, p.ChannelID) {
		log.Debug().Str("module", "signal").Str("conn", string(s.id)).Str("channel", string(p.ChannelID)).Msg("leave-voice: not a member")
	}
}

func (ctl *SignalWSController) handleToggleMedia(s *session, data []byte) {
	var p struct {
		ChannelID domain.ChannelID `json:"channelId"`
		Flag      string           `json:"flag"`
		Value     bool             `json:"value"`
	}
	if !ctl.decode(s, data, &p) {
		return
	}
	flag, err := domain.ParseMediaFlag(p.Flag)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("toggle-media")
		ctl.sendError(s, "unknown_flag")
		return
	}
	ch := p.ChannelID
	if ch == "" {
		snap, ok := ctl.Orch.Registry.Lookup(s.id)
		if !ok || snap.VoiceRoom == "" {
			log.Debug().Str("module", "signal").Str("conn", string(s.id)).Msg("toggle-media outside voice room")
			return
		}
		ch = snap.VoiceRoom
	}
	ctl.Orch.OnMediaToggle(ch, s.user.ID, flag, p.Value)
}
