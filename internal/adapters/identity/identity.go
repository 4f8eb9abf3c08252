// Package identity is the boundary to the auth collaborator: it turns an
// already-authenticated HTTP request into a verified domain.User before a
// connection is admitted.
package identity

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/dkeye/devcord-rt/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const TokenCookie = "token"

type Identity interface {
	Resolve(r *http.Request) (*domain.User, error)
}

// Claims is what the account service signs: {"id": ...} plus optional
// display metadata.
type Claims struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// JWTIdentity verifies HS256 tokens issued by the account service.
type JWTIdentity struct {
	Secret []byte
}

func NewJWTIdentity(secret string) *JWTIdentity {
	return &JWTIdentity{Secret: []byte(secret)}
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// Browsers cannot set headers on a WebSocket upgrade.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (j *JWTIdentity) Resolve(r *http.Request) (*domain.User, error) {
	raw := tokenFrom(r)
	if raw == "" {
		return nil, errors.Wrap(ErrUnauthenticated, "missing token")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}

	id := claims.ID
	if id == "" {
		id = claims.Subject
	}
	name := claims.Name
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	u, err := domain.NewUser(id, name)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	if err := u.SetAvatar(claims.Avatar); err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return u, nil
}

// StaticIdentity trusts ?id=&name=&avatar= query parameters. Debug mode only.
type StaticIdentity struct{}

func (StaticIdentity) Resolve(r *http.Request) (*domain.User, error) {
	q := r.URL.Query()
	u, err := domain.NewUser(q.Get("id"), q.Get("name"))
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	if err := u.SetAvatar(q.Get("avatar")); err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return u, nil
}
