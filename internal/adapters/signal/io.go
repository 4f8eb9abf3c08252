package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/dkeye/devcord-rt/internal/core"
)

type handlerFunc func(ctl *SignalWSController, s *session, data []byte)

var handlers map[core.EventKind]handlerFunc

func init() {
	handlers = map[core.EventKind]handlerFunc{
		core.KindJoinChat:     (*SignalWSController).handleJoinChat,
		core.KindLeaveChat:    (*SignalWSController).handleLeaveChat,
		core.KindPublishChat:  (*SignalWSController).handlePublishChat,
		core.KindJoinVoice:    (*SignalWSController).handleJoinVoice,
		core.KindLeaveVoice:   (*SignalWSController).handleLeaveVoice,
		core.KindToggleMedia:  (*SignalWSController).handleToggleMedia,
		core.KindOffer:        (*SignalWSController).handleSignaling,
		core.KindAnswer:       (*SignalWSController).handleSignaling,
		core.KindICECandidate: (*SignalWSController).handleSignaling,
		core.KindPing:         (*SignalWSController).handlePing,
		core.KindWhoAmI:       (*SignalWSController).handleWhoAmI,
	}
}

func (ctl *SignalWSController) writePump(ctx context.Context, s *session) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	ws := s.conn.conn
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(s.id)).Msg("writePump ctx done")
			return
		case data, ok := <-s.conn.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(s.id)).Msg("writePump channel closed")
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(s.id)).Msg("readPump closing")
		s.conn.Close()
		ctl.limiter.Forget(s.id)
		ctl.Orch.OnDisconnect(s.id)
	}()

	ws := s.conn.conn
	ws.SetReadLimit(ctl.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(s.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(s, data)
		}
	}
}

// dispatch routes one inbound frame by its "type". Malformed and unknown
// frames are dropped; the connection stays open.
func (ctl *SignalWSController) dispatch(s *session, data []byte) {
	if !gjson.ValidBytes(data) {
		log.Warn().Str("module", "signal").Str("conn", string(s.id)).Msg("bad json")
		return
	}
	kind := core.EventKind(gjson.GetBytes(data, "type").String())
	h, ok := handlers[kind]
	if !ok {
		log.Warn().Str("module", "signal").Str("conn", string(s.id)).Str("type", string(kind)).Msg("unknown signal")
		return
	}
	h(ctl, s, data)
}

func (ctl *SignalWSController) sendJSON(s *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = ctl.Orch.Registry.Send(s.id, b)
}

func (ctl *SignalWSController) sendError(s *session, reason string) {
	ctl.sendJSON(s, core.ErrorEvent{Type: core.KindError, Error: reason})
}

// decode unmarshals a control event, answering bad_payload on failure.
func (ctl *SignalWSController) decode(s *session, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("bad payload")
		ctl.sendError(s, "bad_payload")
		return false
	}
	return true
}
