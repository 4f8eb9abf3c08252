package orch

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
)

// OnSignal routes one handshake message from conn to exactly one peer in
// the sender's current voice room. The payload is never inspected or
// rewritten here; source is stamped from the sender's bound identity.
// Any routing failure drops the envelope and is returned for logging only.
func (o *Orchestrator) OnSignal(conn core.ConnID, env core.Envelope) error {
	err := o.routeSignal(conn, env)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).
			Str("kind", string(env.Kind)).Str("target", string(env.Target)).Msg("signaling envelope dropped")
	}
	return err
}

func (o *Orchestrator) routeSignal(conn core.ConnID, env core.Envelope) error {
	snap, ok := o.Registry.Lookup(conn)
	if !ok || !snap.Bound {
		return errors.Wrapf(core.ErrNotFound, "bound connection %s", conn)
	}
	env.Source = snap.User.ID
	if err := env.Check(); err != nil {
		return err
	}
	if env.Target == env.Source {
		return errors.Wrap(core.ErrMalformedEnvelope, "target is the sender")
	}

	ch := snap.VoiceRoom
	if ch == "" {
		return errors.Wrap(core.ErrNotFound, "sender is not in a voice room")
	}
	if self, ok := o.Rooms.VoiceMember(ch, env.Source); !ok || self.ConnID != conn {
		return errors.Wrapf(core.ErrNotFound, "sender not present in %s", ch)
	}
	target, ok := o.Rooms.VoiceMember(ch, env.Target)
	if !ok {
		return errors.Wrapf(core.ErrNotFound, "target not present in %s", ch)
	}

	frame, err := core.Encode(core.SignalRelay{
		Type:      env.Kind.EventKind(),
		ChannelID: ch,
		Source:    env.Source,
		Target:    env.Target,
		Payload:   env.Payload,
	})
	if err != nil {
		return err
	}
	if err := o.Registry.Send(target.ConnID, frame); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			o.leave(ch, target.UserID, target.ConnID)
		}
		return err
	}
	log.Debug().Str("module", "orch").Str("channel", string(ch)).Str("kind", string(env.Kind)).
		Str("source", string(env.Source)).Str("target", string(env.Target)).Msg("signal relayed")
	return nil
}
