package app

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

// ChatRelay fans chat events out to the live subscribers of a channel.
// It is a live set, not a log: nothing is buffered for late joiners.
type ChatRelay struct {
	Registry *Registry
	Rooms    *RoomManager
}

func NewChatRelay(reg *Registry, rooms *RoomManager) *ChatRelay {
	return &ChatRelay{Registry: reg, Rooms: rooms}
}

// Join subscribes conn to ch. Re-joining is a no-op.
func (c *ChatRelay) Join(ch domain.ChannelID, conn core.ConnID) error {
	if !c.Registry.TrackChat(conn, ch) {
		return errors.Wrapf(core.ErrNotFound, "connection %s", conn)
	}
	c.Rooms.SubscribeChat(ch, conn)
	// Lost the race with disconnect: the reconciler may already have run.
	if !c.Registry.Alive(conn) {
		c.Rooms.UnsubscribeChat(ch, conn)
		return errors.Wrapf(core.ErrNotFound, "connection %s", conn)
	}
	return nil
}

func (c *ChatRelay) Part(ch domain.ChannelID, conn core.ConnID) {
	c.Registry.UntrackChat(conn, ch)
	c.Rooms.UnsubscribeChat(ch, conn)
}

// Publish sends record verbatim, wrapped in a chat-event, to every
// connection subscribed at call time and returns how many accepted it.
func (c *ChatRelay) Publish(ch domain.ChannelID, record json.RawMessage) (int, error) {
	frame, err := core.Encode(core.ChatEvent{
		Type:      core.KindChatEvent,
		ChannelID: ch,
		Message:   record,
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, conn := range c.Rooms.ChatMembers(ch) {
		err := c.Registry.Send(conn, frame)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, core.ErrNotFound):
			c.Rooms.UnsubscribeChat(ch, conn)
		}
	}
	log.Debug().Str("module", "app.chat").Str("channel", string(ch)).Int("sent_to", sent).Msg("chat event published")
	return sent, nil
}
