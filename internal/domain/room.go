package domain

// ChannelID identifies a channel in the directory; chat rooms and voice
// rooms are both keyed by it.
type ChannelID string

type ChannelKind string

const (
	ChannelChat  ChannelKind = "chat"
	ChannelVoice ChannelKind = "voice"
)
