// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
	MaxAvatarLen   = 512
)

var (
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrAvatarTooLong   = errors.New("avatar too long")
)

type UserID string

// User is the verified identity supplied by the auth collaborator.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// An empty username falls back to the id.
func NewUser(id, username string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	u := &User{ID: UserID(id), Username: id}
	if strings.TrimSpace(username) != "" {
		if err := u.SetUsername(username); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}

func (u *User) SetAvatar(avatar string) error {
	if len(avatar) > MaxAvatarLen {
		return ErrAvatarTooLong
	}
	u.Avatar = avatar
	return nil
}
