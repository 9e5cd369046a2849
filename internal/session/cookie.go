package session

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "kakeibo"

var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieCodec signs session ids into cookie values so a forged or
// tampered cookie is rejected before any store lookup.
type CookieCodec struct {
	secret   []byte
	name     string
	secure   bool
	sameSite http.SameSite
	now      func() time.Time
}

type CookieOptions struct {
	Name     string
	Secret   string
	Secure   bool
	SameSite http.SameSite
}

type cookieClaims struct {
	jwt.RegisteredClaims
}

func NewCookieCodec(opts CookieOptions) *CookieCodec {
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteStrictMode
	}
	return &CookieCodec{
		secret:   []byte(opts.Secret),
		name:     opts.Name,
		secure:   opts.Secure,
		sameSite: sameSite,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (c *CookieCodec) WithClock(now func() time.Time) *CookieCodec {
	c.now = now
	return c
}

func (c *CookieCodec) Name() string {
	return c.name
}

func (c *CookieCodec) Encode(sessionID string, expiresAt time.Time) (string, error) {
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the session id.
func (c *CookieCodec) Decode(value string) (string, error) {
	claims := &cookieClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}

// Read extracts and verifies the session id carried by the request.
func (c *CookieCodec) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return "", ErrInvalidCookie
	}
	return c.Decode(cookie.Value)
}

// Write sets a signed cookie for the session that lives until expiresAt.
func (c *CookieCodec) Write(w http.ResponseWriter, s *Session) error {
	value, err := c.Encode(s.ID, s.ExpiresAt)
	if err != nil {
		return err
	}
	maxAge := int(math.Round(s.ExpiresAt.Sub(c.now()).Seconds()))
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
	return nil
}

// Clear tells the browser to drop the cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
}
