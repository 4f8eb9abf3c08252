package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

// connRecord is the per-connection state. Only Registry methods touch it.
type connRecord struct {
	user      *domain.User
	voice     domain.ChannelID
	chats     map[domain.ChannelID]struct{}
	signal    core.SignalConnection
	createdAt time.Time
}

// ConnSnapshot is a copy of a connection record, safe to hold after the
// registry lock is released.
type ConnSnapshot struct {
	ID        core.ConnID
	User      domain.User
	Bound     bool
	VoiceRoom domain.ChannelID
	ChatRooms []domain.ChannelID
	CreatedAt time.Time
}

// Registry is the Connection Registry: the sole owner of live connections
// and the identity bound to each.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnID]*connRecord
	policy Policy
}

func NewRegistry(policy Policy) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		conns:  make(map[core.ConnID]*connRecord),
		policy: policy,
	}
}

func (r *Registry) snapshot(id core.ConnID, e *connRecord) ConnSnapshot {
	s := ConnSnapshot{
		ID:        id,
		VoiceRoom: e.voice,
		CreatedAt: e.createdAt,
	}
	if e.user != nil {
		s.User = *e.user
		s.Bound = true
	}
	if len(e.chats) > 0 {
		s.ChatRooms = make([]domain.ChannelID, 0, len(e.chats))
		for ch := range e.chats {
			s.ChatRooms = append(s.ChatRooms, ch)
		}
	}
	return s
}

// Register allocates an identity for a freshly established transport.
func (r *Registry) Register(sig core.SignalConnection) core.ConnID {
	id := core.ConnID(uuid.NewString())
	r.mu.Lock()
	r.conns[id] = &connRecord{
		chats:     make(map[domain.ChannelID]struct{}),
		signal:    sig,
		createdAt: time.Now(),
	}
	total := len(r.conns)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("total", total).Msg("registered connection")
	return id
}

// Bind attaches a verified identity. Binding the same user twice is a no-op.
func (r *Registry) Bind(id core.ConnID, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return errors.Wrapf(core.ErrNotFound, "connection %s", id)
	}
	if e.user != nil {
		if e.user.ID != user.ID {
			log.Warn().Str("module", "app.registry").Str("conn", string(id)).
				Str("bound", string(e.user.ID)).Str("user", string(user.ID)).Msg("rejected rebind")
			return errors.Wrapf(core.ErrAlreadyBound, "connection %s", id)
		}
		return nil
	}
	u := user
	e.user = &u
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user.ID)).Msg("bound user")
	return nil
}

func (r *Registry) Lookup(id core.ConnID) (ConnSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnSnapshot{}, false
	}
	return r.snapshot(id, e), true
}

func (r *Registry) Alive(id core.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send delivers one frame without blocking. A missing or closed connection
// is logged and reported as core.ErrNotFound; a full buffer goes through
// the policy.
func (r *Registry) Send(id core.ConnID, f core.Frame) error {
	r.mu.RLock()
	e, ok := r.conns[id]
	var sig core.SignalConnection
	if ok {
		sig = e.signal
	}
	r.mu.RUnlock()
	if !ok || sig == nil {
		log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("send to unknown connection dropped")
		return errors.Wrapf(core.ErrNotFound, "connection %s", id)
	}

	err := sig.TrySend(f)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrClosed) {
		log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("send to closed connection skipped")
		return errors.Wrapf(core.ErrNotFound, "connection %s closed", id)
	}
	snap, _ := r.Lookup(id)
	switch r.policy.OnBackPressure(snap) {
	case KickMember:
		log.Warn().Err(err).Str("module", "app.registry").Str("conn", string(id)).Msg("slow connection kicked")
		sig.Close()
	case DropFrame:
		log.Warn().Err(err).Str("module", "app.registry").Str("conn", string(id)).Msg("frame dropped")
	}
	return err
}

// Unregister removes the connection and hands back its last state for
// reconciliation. Calling it twice reports ok=false the second time.
func (r *Registry) Unregister(id core.ConnID) (ConnSnapshot, bool) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return ConnSnapshot{}, false
	}
	delete(r.conns, id)
	snap := r.snapshot(id, e)
	total := len(r.conns)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("total", total).Msg("unregistered connection")
	return snap, true
}

// BindVoice records ch as the connection's voice room and returns the room
// it was bound to before. The connection must carry an identity.
func (r *Registry) BindVoice(id core.ConnID, ch domain.ChannelID) (domain.ChannelID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.user == nil {
		return "", errors.Wrapf(core.ErrNotFound, "bound connection %s", id)
	}
	prev := e.voice
	e.voice = ch
	return prev, nil
}

// ClearVoice drops the voice binding only while it still points at ch.
func (r *Registry) ClearVoice(id core.ConnID, ch domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.voice != ch {
		return false
	}
	e.voice = ""
	return true
}

// TrackChat remembers a chat subscription for disconnect cleanup.
func (r *Registry) TrackChat(id core.ConnID, ch domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.chats[ch] = struct{}{}
	return true
}

func (r *Registry) UntrackChat(id core.ConnID, ch domain.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		delete(e.chats, ch)
	}
}

// ConnsOfUser lists every live connection bound to user.
func (r *Registry) ConnsOfUser(user domain.UserID) []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ConnSnapshot
	for id, e := range r.conns {
		if e.user != nil && e.user.ID == user {
			out = append(out, r.snapshot(id, e))
		}
	}
	return out
}

// CloseAll closes every transport; their read loops then unregister.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	sigs := make([]core.SignalConnection, 0, len(r.conns))
	for _, e := range r.conns {
		if e.signal != nil {
			sigs = append(sigs, e.signal)
		}
	}
	r.mu.RUnlock()
	for _, s := range sigs {
		s.Close()
	}
	log.Info().Str("module", "app.registry").Int("closed", len(sigs)).Msg("closed all connections")
	return len(sigs)
}
