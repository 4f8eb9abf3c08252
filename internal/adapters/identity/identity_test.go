package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestJWTIdentityResolvesFromCookieHeaderAndQuery(t *testing.T) {
	id := NewJWTIdentity(testSecret)
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{ID: "u-1", Name: "Ada", Avatar: "/a.png"})

	cookieReq := httptest.NewRequest(http.MethodGet, "/api/ws/signal", nil)
	cookieReq.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})

	headerReq := httptest.NewRequest(http.MethodGet, "/api/ws/signal", nil)
	headerReq.Header.Set("Authorization", "Bearer "+token)

	queryReq := httptest.NewRequest(http.MethodGet, "/api/ws/signal?token="+token, nil)

	for name, r := range map[string]*http.Request{"cookie": cookieReq, "header": headerReq, "query": queryReq} {
		u, err := id.Resolve(r)
		if err != nil {
			t.Fatalf("%s: resolve: %v", name, err)
		}
		if u.ID != "u-1" || u.Username != "Ada" || u.Avatar != "/a.png" {
			t.Errorf("%s: unexpected user %+v", name, u)
		}
	}
}

func TestJWTIdentityFallsBackToSubjectAndQueryName(t *testing.T) {
	id := NewJWTIdentity(testSecret)
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"},
	})
	r := httptest.NewRequest(http.MethodGet, "/api/ws/signal?name=Grace&token="+token, nil)
	u, err := id.Resolve(r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "u-2" || u.Username != "Grace" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestJWTIdentityRejects(t *testing.T) {
	id := NewJWTIdentity(testSecret)
	expired := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		ID:               "u-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), Claims{ID: "u-1"})
	wrongAlg := sign(t, jwt.SigningMethodHS512, []byte(testSecret), Claims{ID: "u-1"})
	noID := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{Name: "nobody"})

	for name, token := range map[string]string{
		"missing":   "",
		"expired":   expired,
		"wrong key": wrongKey,
		"wrong alg": wrongAlg,
		"no id":     noID,
	} {
		r := httptest.NewRequest(http.MethodGet, "/api/ws/signal?token="+token, nil)
		if _, err := id.Resolve(r); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestStaticIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/ws/signal?id=u-9&name=Linus", nil)
	u, err := StaticIdentity{}.Resolve(r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "u-9" || u.Username != "Linus" {
		t.Errorf("unexpected user %+v", u)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/ws/signal?name=Linus", nil)
	if _, err := (StaticIdentity{}).Resolve(r); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated without id, got %v", err)
	}
}
