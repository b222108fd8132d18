package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies the locally authenticated user behind a request. The
// workflow layer receives it explicitly instead of reaching into any global
// request context.
type Session struct {
	UserID string
	Name   string
}

var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issue signs a session token for the given user. The site frontend obtains
// one at login; tests use it to build authenticated requests.
func Issue(secret []byte, sess Session, ttl time.Duration) (string, error) {
	if sess.UserID == "" {
		return "", errors.New("session requires a user id")
	}
	now := time.Now()
	c := claims{
		Name: sess.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(secret)
}

// Parse validates a session token and returns the session it carries.
func Parse(secret []byte, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrInvalidToken
	}

	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Session{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Session{}, ErrInvalidToken
	}

	return Session{UserID: c.Subject, Name: c.Name}, nil
}
