package core

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/dkeye/devcord-rt/internal/domain"
)

// EventKind is the value of the "type" field of every frame.
type EventKind string

// Inbound.
const (
	KindJoinChat     EventKind = "join-chat-room"
	KindLeaveChat    EventKind = "leave-chat-room"
	KindPublishChat  EventKind = "publish-chat-event"
	KindJoinVoice    EventKind = "join-voice-room"
	KindLeaveVoice   EventKind = "leave-voice-room"
	KindOffer        EventKind = "signaling-offer"
	KindAnswer       EventKind = "signaling-answer"
	KindICECandidate EventKind = "signaling-ice-candidate"
	KindToggleMedia  EventKind = "toggle-media-flag"
	KindPing         EventKind = "ping"
	KindWhoAmI       EventKind = "whoami"
)

// Outbound. Relayed signaling reuses the inbound kinds.
const (
	KindChatEvent    EventKind = "chat-event"
	KindPeerJoined   EventKind = "peer-joined"
	KindPeerLeft     EventKind = "peer-left"
	KindMediaChanged EventKind = "media-flag-changed"
	KindPong         EventKind = "pong"
	KindError        EventKind = "error"
)

// SignalKind is the handshake step carried by an Envelope.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// EventKind maps the signal step back to its wire kind.
func (k SignalKind) EventKind() EventKind {
	switch k {
	case SignalOffer:
		return KindOffer
	case SignalAnswer:
		return KindAnswer
	case SignalICECandidate:
		return KindICECandidate
	}
	return ""
}

// SignalKindOf reports whether kind is a signaling event and which step it is.
func SignalKindOf(kind EventKind) (SignalKind, bool) {
	switch kind {
	case KindOffer:
		return SignalOffer, true
	case KindAnswer:
		return SignalAnswer, true
	case KindICECandidate:
		return SignalICECandidate, true
	}
	return "", false
}

// Envelope is one WebRTC handshake message in transit. Never stored.
type Envelope struct {
	Kind    SignalKind
	Source  domain.UserID
	Target  domain.UserID
	Payload json.RawMessage
}

// Check rejects envelopes that cannot be routed at all.
func (e Envelope) Check() error {
	if e.Kind.EventKind() == "" {
		return errors.Wrapf(ErrMalformedEnvelope, "unknown kind %q", e.Kind)
	}
	if e.Target == "" {
		return errors.Wrap(ErrMalformedEnvelope, "missing target")
	}
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.Wrap(ErrMalformedEnvelope, "missing payload")
	}
	return nil
}

type ChatEvent struct {
	Type      EventKind        `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	Message   json.RawMessage  `json:"message"`
}

type PeerJoined struct {
	Type      EventKind        `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	PeerDTO
}

type PeerLeft struct {
	Type      EventKind        `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
}

type SignalRelay struct {
	Type      EventKind        `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	Source    domain.UserID    `json:"source"`
	Target    domain.UserID    `json:"target"`
	Payload   json.RawMessage  `json:"payload"`
}

type MediaFlagChanged struct {
	Type      EventKind        `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Flag      domain.MediaFlag `json:"flag"`
	Value     bool             `json:"value"`
}

type ErrorEvent struct {
	Type  EventKind `json:"type"`
	Error string    `json:"error"`
}

// Encode marshals an outbound event once so it can be fanned out as is.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	return Frame(b), nil
}
