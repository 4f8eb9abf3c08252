package orch

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

// JoinRequest carries everything a voice join needs.
type JoinRequest struct {
	Channel domain.ChannelID
	User    domain.UserID
	Conn    core.ConnID
	Name    string
	Avatar  string
	Media   domain.MediaState
}

// OnJoinVoice adds the user to the voice room and sends peer-joined to the
// members already present. The joiner gets nothing: existing members are
// the designated offerers and each of them starts a handshake toward it.
func (o *Orchestrator) OnJoinVoice(req JoinRequest) error {
	snap, ok := o.Registry.Lookup(req.Conn)
	if !ok || !snap.Bound {
		return errors.Wrapf(core.ErrNotFound, "bound connection %s", req.Conn)
	}
	if snap.User.ID != req.User {
		return errors.Wrapf(core.ErrAlreadyBound, "connection %s belongs to %s", req.Conn, snap.User.ID)
	}

	prev, err := o.Registry.BindVoice(req.Conn, req.Channel)
	if err != nil {
		return err
	}
	if prev != "" && prev != req.Channel {
		o.leave(prev, req.User, req.Conn)
		log.Info().Str("module", "orch").Str("user", string(req.User)).Str("from_room", string(prev)).Msg("moved out of previous voice room")
	}
	o.evictElsewhere(req)

	name := req.Name
	if name == "" {
		name = snap.User.Username
	}
	avatar := req.Avatar
	if avatar == "" {
		avatar = snap.User.Avatar
	}
	member := core.VoiceMember{
		UserID:   req.User,
		ConnID:   req.Conn,
		Name:     name,
		Avatar:   avatar,
		Media:    req.Media,
		JoinedAt: o.now(),
	}
	prior, replaced := o.Rooms.JoinVoice(req.Channel, member)

	switch {
	case replaced != nil && replaced.ConnID == req.Conn:
		log.Debug().Str("module", "orch").Str("channel", string(req.Channel)).Str("user", string(req.User)).Msg("duplicate join refreshed metadata")
	case replaced != nil:
		// Same user, new connection: peers must rebuild the media session.
		o.Registry.ClearVoice(replaced.ConnID, req.Channel)
		o.notifyLeft(req.Channel, req.User, prior)
		o.notifyJoined(req.Channel, member, prior)
	default:
		o.notifyJoined(req.Channel, member, prior)
	}

	// Lost the race with disconnect: the reconciler may already have run.
	if !o.Registry.Alive(req.Conn) {
		if !o.leave(req.Channel, req.User, req.Conn) {
			// The reconciler removed us first, possibly before peer-joined
			// went out. Repeat peer-left so no peer keeps a ghost.
			if _, present := o.Rooms.VoiceMember(req.Channel, req.User); !present {
				o.notifyLeft(req.Channel, req.User, prior)
			}
		}
		return errors.Wrapf(core.ErrNotFound, "connection %s", req.Conn)
	}
	return nil
}

func (o *Orchestrator) notifyJoined(ch domain.ChannelID, member core.VoiceMember, to []core.VoiceMember) {
	frame, err := core.Encode(core.PeerJoined{Type: core.KindPeerJoined, ChannelID: ch, PeerDTO: member.DTO()})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode peer-joined")
		return
	}
	n := o.fanOut(ch, to, frame)
	log.Debug().Str("module", "orch").Str("channel", string(ch)).Str("user", string(member.UserID)).Int("sent_to", n).Msg("peer-joined broadcast")
}

// evictElsewhere keeps a user in at most one voice room: other connections
// of the same user sitting in a different room are taken out of it.
func (o *Orchestrator) evictElsewhere(req JoinRequest) {
	for _, other := range o.Registry.ConnsOfUser(req.User) {
		if other.ID == req.Conn || other.VoiceRoom == "" || other.VoiceRoom == req.Channel {
			continue
		}
		// A binding without a room entry is a join still in flight on the
		// other tab; its own insert follows and must keep the binding.
		if !o.leave(other.VoiceRoom, req.User, other.ID) {
			continue
		}
		// Let the evicted tab tear its own peer connections down.
		if frame, err := core.Encode(core.PeerLeft{Type: core.KindPeerLeft, ChannelID: other.VoiceRoom, UserID: req.User}); err == nil {
			_ = o.Registry.Send(other.ID, frame)
		}
		log.Info().Str("module", "orch").Str("user", string(req.User)).Str("conn", string(other.ID)).
			Str("from_room", string(other.VoiceRoom)).Msg("evicted from other voice room")
	}
}

// OnLeaveVoice removes user from ch whatever connection it joined with and
// sends peer-left to the members that remain. No-op when absent.
func (o *Orchestrator) OnLeaveVoice(ch domain.ChannelID, user domain.UserID) bool {
	gone, remaining, ok := o.Rooms.LeaveVoice(ch, user)
	if !ok {
		return false
	}
	o.Registry.ClearVoice(gone.ConnID, ch)
	o.notifyLeft(ch, user, remaining)
	return true
}

// LeaveVoiceFrom is an explicit leave sent by conn. An empty ch means the
// room conn is currently bound to.
func (o *Orchestrator) LeaveVoiceFrom(conn core.ConnID, ch domain.ChannelID) bool {
	snap, ok := o.Registry.Lookup(conn)
	if !ok || !snap.Bound {
		return false
	}
	if ch == "" {
		ch = snap.VoiceRoom
	}
	if ch == "" {
		return false
	}
	o.Registry.ClearVoice(conn, ch)
	return o.leave(ch, snap.User.ID, conn)
}

// OnKick removes user from ch on behalf of a moderator. The evicted
// connection gets the same peer-left as the room so it drops its peers.
func (o *Orchestrator) OnKick(ch domain.ChannelID, user domain.UserID) bool {
	gone, remaining, ok := o.Rooms.LeaveVoice(ch, user)
	if !ok {
		return false
	}
	o.Registry.ClearVoice(gone.ConnID, ch)
	o.notifyLeft(ch, user, append(remaining, gone))
	log.Info().Str("module", "orch").Str("channel", string(ch)).Str("user", string(user)).Msg("kicked from voice room")
	return true
}
