package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/dkeye/devcord-rt/internal/domain"
)

type chatPayload struct {
	ChannelID domain.ChannelID `json:"channelId"`
	Message   json.RawMessage  `json:"message"`
}

func (ctl *SignalWSController) decodeChat(s *session, data []byte) (chatPayload, bool) {
	var p chatPayload
	if !ctl.decode(s, data, &p) {
		return p, false
	}
	if p.ChannelID == "" {
		ctl.sendError(s, "missing_channel")
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleJoinChat(s *session, data []byte) {
	p, ok := ctl.decodeChat(s, data)
	if !ok {
		return
	}
	if !ctl.limiter.Allow(s.id) {
		log.Warn().Str("module", "signal").Str("conn", string(s.id)).Msg("join-chat rate limited")
		ctl.sendError(s, "rate_limited")
		return
	}
	if err := ctl.Orch.Chat.Join(p.ChannelID, s.id); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("join-chat dropped")
	}
}

func (ctl *SignalWSController) handleLeaveChat(s *session, data []byte) {
	p, ok := ctl.decodeChat(s, data)
	if !ok {
		return
	}
	ctl.Orch.Chat.Part(p.ChannelID, s.id)
}

// handlePublishChat relays an already persisted message record. The record
// is opaque here but must be a JSON object.
func (ctl *SignalWSController) handlePublishChat(s *session, data []byte) {
	p, ok := ctl.decodeChat(s, data)
	if !ok {
		return
	}
	if !gjson.ParseBytes(p.Message).IsObject() {
		log.Warn().Str("module", "signal").Str("conn", string(s.id)).Msg("publish without message object")
		ctl.sendError(s, "bad_message")
		return
	}
	if _, err := ctl.Orch.Chat.Publish(p.ChannelID, p.Message); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("channel", string(p.ChannelID)).Msg("publish")
	}
}
