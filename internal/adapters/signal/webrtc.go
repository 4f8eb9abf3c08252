package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/adapters/rtc"
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

type signalingPayload struct {
	Type    core.EventKind  `json:"type"`
	Target  domain.UserID   `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// handleSignaling forwards offers, answers and candidates to one peer.
// Every failure is a silent drop toward the sender.
func (ctl *SignalWSController) handleSignaling(s *session, data []byte) {
	var p signalingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("bad signaling frame")
		return
	}
	kind, ok := core.SignalKindOf(p.Type)
	if !ok {
		return
	}
	if err := rtc.ValidatePayload(kind, p.Payload); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Str("kind", string(kind)).Msg("signaling payload rejected")
		return
	}
	_ = ctl.Orch.OnSignal(s.id, core.Envelope{
		Kind:    kind,
		Source:  s.user.ID,
		Target:  p.Target,
		Payload: p.Payload,
	})
}
