package core

import "github.com/dkeye/devcord-rt/internal/domain"

type RoomInfo struct {
	Channel     domain.ChannelID   `json:"channelId"`
	Kind        domain.ChannelKind `json:"kind"`
	MemberCount int                `json:"member_count"`
}
