package app

import "strings"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose outbound buffer is full.
type Policy interface {
	OnBackPressure(conn ConnSnapshot) BackpressureAction
}

// SimplePolicy drops the frame, or kicks the slow member when Kick is set.
type SimplePolicy struct {
	Kick bool
}

func (p SimplePolicy) OnBackPressure(ConnSnapshot) BackpressureAction {
	if p.Kick {
		return KickMember
	}
	return DropFrame
}

// PolicyFromMode maps the config value ("drop" or "kick") to a Policy.
func PolicyFromMode(mode string) Policy {
	return SimplePolicy{Kick: strings.EqualFold(strings.TrimSpace(mode), "kick")}
}
