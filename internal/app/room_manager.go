package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

// Liveness reports whether a connection is still registered.
type Liveness interface {
	Alive(id core.ConnID) bool
}

// room is one membership set guarded by its own mutex. A room removed from
// the manager is marked dead so writers holding a stale pointer retry.
type room[K comparable, V any] struct {
	mu      sync.Mutex
	members map[K]V
	dead    bool
}

type roomTable[K comparable, V any] struct {
	mu    sync.Mutex
	rooms map[domain.ChannelID]*room[K, V]
}

func newRoomTable[K comparable, V any]() *roomTable[K, V] {
	return &roomTable[K, V]{rooms: make(map[domain.ChannelID]*room[K, V])}
}

// lock returns the live room for ch with its mutex held, or nil when the
// room does not exist and create is false. The table lock is never held
// while a room lock is acquired.
func (t *roomTable[K, V]) lock(ch domain.ChannelID, create bool) *room[K, V] {
	for {
		t.mu.Lock()
		r, ok := t.rooms[ch]
		if !ok {
			if !create {
				t.mu.Unlock()
				return nil
			}
			r = &room[K, V]{members: make(map[K]V)}
			t.rooms[ch] = r
		}
		t.mu.Unlock()

		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// unlock releases r, garbage-collecting it first if it became empty.
func (t *roomTable[K, V]) unlock(ch domain.ChannelID, r *room[K, V]) {
	if len(r.members) == 0 {
		r.dead = true
		t.mu.Lock()
		if t.rooms[ch] == r {
			delete(t.rooms, ch)
		}
		t.mu.Unlock()
	}
	r.mu.Unlock()
}

func (t *roomTable[K, V]) channels() []domain.ChannelID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChannelID, 0, len(t.rooms))
	for ch := range t.rooms {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoomManager owns chat-subscription rooms and voice-presence rooms.
type RoomManager struct {
	chats *roomTable[core.ConnID, struct{}]
	voice *roomTable[domain.UserID, core.VoiceMember]
	live  Liveness
}

// NewRoomManager builds an empty manager. live may be nil; when set, chat
// members whose connection is gone are pruned on read.
func NewRoomManager(live Liveness) *RoomManager {
	return &RoomManager{
		chats: newRoomTable[core.ConnID, struct{}](),
		voice: newRoomTable[domain.UserID, core.VoiceMember](),
		live:  live,
	}
}

func (m *RoomManager) SubscribeChat(ch domain.ChannelID, conn core.ConnID) {
	r := m.chats.lock(ch, true)
	r.members[conn] = struct{}{}
	n := len(r.members)
	m.chats.unlock(ch, r)
	log.Debug().Str("module", "app.rooms").Str("channel", string(ch)).Str("conn", string(conn)).Int("members", n).Msg("chat subscribed")
}

// UnsubscribeChat reports whether conn was subscribed.
func (m *RoomManager) UnsubscribeChat(ch domain.ChannelID, conn core.ConnID) bool {
	r := m.chats.lock(ch, false)
	if r == nil {
		return false
	}
	_, ok := r.members[conn]
	delete(r.members, conn)
	m.chats.unlock(ch, r)
	if ok {
		log.Debug().Str("module", "app.rooms").Str("channel", string(ch)).Str("conn", string(conn)).Msg("chat unsubscribed")
	}
	return ok
}

// ChatMembers is a snapshot of the subscribers of ch.
func (m *RoomManager) ChatMembers(ch domain.ChannelID) []core.ConnID {
	r := m.chats.lock(ch, false)
	if r == nil {
		return nil
	}
	out := make([]core.ConnID, 0, len(r.members))
	for conn := range r.members {
		if m.live != nil && !m.live.Alive(conn) {
			delete(r.members, conn)
			log.Debug().Str("module", "app.rooms").Str("channel", string(ch)).Str("conn", string(conn)).Msg("pruned stale chat member")
			continue
		}
		out = append(out, conn)
	}
	m.chats.unlock(ch, r)
	return out
}

// JoinVoice inserts member, replacing any entry of the same user in the
// same room. It returns the other members present before the join and the
// entry it replaced, if any.
func (m *RoomManager) JoinVoice(ch domain.ChannelID, member core.VoiceMember) (prior []core.VoiceMember, replaced *core.VoiceMember) {
	r := m.voice.lock(ch, true)
	if old, ok := r.members[member.UserID]; ok {
		replaced = &old
	}
	prior = make([]core.VoiceMember, 0, len(r.members))
	for uid, vm := range r.members {
		if uid != member.UserID {
			prior = append(prior, vm)
		}
	}
	r.members[member.UserID] = member
	m.voice.unlock(ch, r)

	log.Info().Str("module", "app.rooms").Str("channel", string(ch)).Str("user", string(member.UserID)).
		Str("conn", string(member.ConnID)).Int("prior", len(prior)).Bool("replaced", replaced != nil).Msg("voice joined")
	return prior, replaced
}

// LeaveVoice removes user from ch. No-op when absent.
func (m *RoomManager) LeaveVoice(ch domain.ChannelID, user domain.UserID) (gone core.VoiceMember, remaining []core.VoiceMember, ok bool) {
	return m.leaveVoice(ch, user, "")
}

// LeaveVoiceConn removes user from ch only while the entry is still bound
// to conn, so a stale connection never evicts a newer one.
func (m *RoomManager) LeaveVoiceConn(ch domain.ChannelID, user domain.UserID, conn core.ConnID) (gone core.VoiceMember, remaining []core.VoiceMember, ok bool) {
	return m.leaveVoice(ch, user, conn)
}

func (m *RoomManager) leaveVoice(ch domain.ChannelID, user domain.UserID, conn core.ConnID) (core.VoiceMember, []core.VoiceMember, bool) {
	r := m.voice.lock(ch, false)
	if r == nil {
		return core.VoiceMember{}, nil, false
	}
	gone, ok := r.members[user]
	if !ok || (conn != "" && gone.ConnID != conn) {
		m.voice.unlock(ch, r)
		return core.VoiceMember{}, nil, false
	}
	delete(r.members, user)
	remaining := make([]core.VoiceMember, 0, len(r.members))
	for _, vm := range r.members {
		remaining = append(remaining, vm)
	}
	m.voice.unlock(ch, r)

	log.Info().Str("module", "app.rooms").Str("channel", string(ch)).Str("user", string(user)).Int("remaining", len(remaining)).Msg("voice left")
	return gone, remaining, true
}

// UpdateMediaState sets one media flag and returns the other members to
// notify. ok is false when user is not in the room; the update is lost.
func (m *RoomManager) UpdateMediaState(ch domain.ChannelID, user domain.UserID, flag domain.MediaFlag, value bool) (others []core.VoiceMember, ok bool) {
	r := m.voice.lock(ch, false)
	if r == nil {
		return nil, false
	}
	vm, ok := r.members[user]
	if !ok {
		m.voice.unlock(ch, r)
		return nil, false
	}
	vm.Media = vm.Media.With(flag, value)
	r.members[user] = vm
	others = make([]core.VoiceMember, 0, len(r.members)-1)
	for uid, other := range r.members {
		if uid != user {
			others = append(others, other)
		}
	}
	m.voice.unlock(ch, r)
	return others, true
}

// VoiceMembers is a snapshot of the voice room.
func (m *RoomManager) VoiceMembers(ch domain.ChannelID) map[domain.UserID]core.VoiceMember {
	r := m.voice.lock(ch, false)
	if r == nil {
		return map[domain.UserID]core.VoiceMember{}
	}
	out := make(map[domain.UserID]core.VoiceMember, len(r.members))
	for uid, vm := range r.members {
		out[uid] = vm
	}
	m.voice.unlock(ch, r)
	return out
}

// VoiceMember looks up a single participant.
func (m *RoomManager) VoiceMember(ch domain.ChannelID, user domain.UserID) (core.VoiceMember, bool) {
	r := m.voice.lock(ch, false)
	if r == nil {
		return core.VoiceMember{}, false
	}
	vm, ok := r.members[user]
	m.voice.unlock(ch, r)
	return vm, ok
}

func (m *RoomManager) ChatRooms() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, ch := range m.chats.channels() {
		if n := len(m.ChatMembers(ch)); n > 0 {
			out = append(out, core.RoomInfo{Channel: ch, Kind: domain.ChannelChat, MemberCount: n})
		}
	}
	return out
}

func (m *RoomManager) VoiceRooms() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, ch := range m.voice.channels() {
		if n := len(m.VoiceMembers(ch)); n > 0 {
			out = append(out, core.RoomInfo{Channel: ch, Kind: domain.ChannelVoice, MemberCount: n})
		}
	}
	return out
}
