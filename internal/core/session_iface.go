package core

import (
	"time"

	"github.com/dkeye/devcord-rt/internal/domain"
)

// ConnID identifies one live transport connection for the process lifetime.
type ConnID string

// VoiceMember is a user's presence in a voice room.
type VoiceMember struct {
	UserID   domain.UserID
	ConnID   ConnID
	Name     string
	Avatar   string
	Media    domain.MediaState
	JoinedAt time.Time
}

// PeerDTO is a read-only view for the wire and APIs (no transport fields).
type PeerDTO struct {
	ID        domain.UserID `json:"userId"`
	Name      string        `json:"name"`
	Avatar    string        `json:"avatar,omitempty"`
	Muted     bool          `json:"muted"`
	CameraOff bool          `json:"cameraOff"`
}

func (m VoiceMember) DTO() PeerDTO {
	return PeerDTO{
		ID:        m.UserID,
		Name:      m.Name,
		Avatar:    m.Avatar,
		Muted:     m.Media.Muted,
		CameraOff: m.Media.CameraOff,
	}
}
