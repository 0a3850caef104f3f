package dataservice

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a fixed bearer token. When the token is a JWT carrying an
// exp claim, an expired token fails locally with a 401 ServerError so the
// session handling runs without a round trip.
type StaticToken struct {
	value string
	now   func() time.Time
}

// NewStaticToken wraps token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{value: strings.TrimSpace(token), now: time.Now}
}

// Token returns the token or the local expiry error.
func (s *StaticToken) Token(context.Context) (string, error) {
	if s == nil || s.value == "" {
		return "", nil
	}
	if exp, ok := jwtExpiry(s.value); ok && !s.now().Before(exp) {
		return "", &ServerError{Status: http.StatusUnauthorized, Message: "session token expired"}
	}
	return s.value, nil
}

// jwtExpiry reads exp without verifying the signature; verification is
// the data service's job.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
