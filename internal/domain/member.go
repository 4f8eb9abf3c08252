package domain

import "errors"

var ErrUnknownMediaFlag = errors.New("unknown media flag")

// MediaFlag names one toggleable media state of a voice participant.
type MediaFlag string

const (
	FlagMuted     MediaFlag = "muted"
	FlagCameraOff MediaFlag = "camera-off"
)

func ParseMediaFlag(s string) (MediaFlag, error) {
	switch MediaFlag(s) {
	case FlagMuted, FlagCameraOff:
		return MediaFlag(s), nil
	}
	return "", ErrUnknownMediaFlag
}

// MediaState is what other participants render for a member.
// No transport or lifecycle logic here.
type MediaState struct {
	Muted     bool `json:"muted"`
	CameraOff bool `json:"cameraOff"`
}

// With returns a copy with flag set to value.
func (m MediaState) With(flag MediaFlag, value bool) MediaState {
	switch flag {
	case FlagMuted:
		m.Muted = value
	case FlagCameraOff:
		m.CameraOff = value
	}
	return m
}
