package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"storyverse/internal/apperror"
)

func newJWTer() *JWTer {
	return &JWTer{Secret: []byte("test-secret-0123456789"), Issuer: "storyverse", TTL: time.Hour}
}

func TestIssueAndResolve(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u1")
	require.NoError(t, err)

	uid, err := j.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestResolveErrors(t *testing.T) {
	j := newJWTer()

	_, err := j.Resolve("")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = j.Resolve("not-a-jwt")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredential)

	other := &JWTer{Secret: []byte("another-secret-987654"), Issuer: "storyverse", TTL: time.Hour}
	tok, _ := other.Issue("u1")
	_, err = j.Resolve(tok)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredential)

	wrongIss := &JWTer{Secret: j.Secret, Issuer: "someone-else", TTL: time.Hour}
	tok, _ = wrongIss.Issue("u1")
	_, err = j.Resolve(tok)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredential)

	expired := &JWTer{Secret: j.Secret, Issuer: j.Issuer, TTL: -2 * time.Hour}
	tok, _ = expired.Issue("u1")
	_, err = j.Resolve(tok)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredential)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, ""},
		{"custom header", map[string]string{"x-auth-token": "abc"}, "abc"},
		{"bearer", map[string]string{"Authorization": "Bearer xyz"}, "xyz"},
		{"custom header wins", map[string]string{"x-auth-token": "abc", "Authorization": "Bearer xyz"}, "abc"},
		{"basic ignored", map[string]string{"Authorization": "Basic Zm9v"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	uid, ok := UserIDFromContext(WithUserID(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)
}

func TestGoogleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer at" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"sub":"g-42","email":"ann@example.com","email_verified":true,"name":"Ann"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewGoogleProvider("cid", "secret", "http://localhost/cb")
	p.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"

	u, err := url.Parse(p.AuthURL("st-1"))
	require.NoError(t, err)
	assert.Equal(t, "st-1", u.Query().Get("state"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))

	gu, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, &GoogleUser{Sub: "g-42", Email: "ann@example.com", EmailVerified: true, Name: "Ann"}, gu)
}
