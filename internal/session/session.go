// Package session holds the server-side login state referenced by the
// session cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Session struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	User          *User     `json:"user,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Valid reports whether the session grants access at now. Expired
// sessions behave exactly like missing ones.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Authenticated && s.User != nil && now.Before(s.ExpiresAt)
}

// Store keeps sessions for at most their TTL.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewID returns a random 256-bit hex identifier.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session resolved for the request, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
