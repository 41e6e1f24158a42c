package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SessionCookie is the cookie carrying the web UI session token.
const SessionCookie = "cue_session"

const sessionTTL = 24 * time.Hour

// uidContextKey is the echo context key the session middleware stores the
// authenticated uid under.
const uidContextKey = "session_uid"

var errNoSession = errors.New("no session")

// Sessions mints and verifies the HS256 session tokens used by the web
// surface. The sign-in flow that sets the cookie (OIDC callback) lives
// outside this server; it calls MintSession with the provider-issued uid.
type Sessions struct {
	secret []byte
}

// NewSessions creates a Sessions helper from the shared session secret.
func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret)}
}

// MintSession returns a signed session token for uid.
func (s *Sessions) MintSession(uid string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify parses and validates a session token, returning the uid.
func (s *Sessions) verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", errNoSession
	}
	return claims.Subject, nil
}

// Middleware is the echo middleware guarding the web surface. Requests
// without a valid session cookie are rejected with 401.
func (s *Sessions) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(SessionCookie)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		uid, err := s.verify(cookie.Value)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		c.Set(uidContextKey, uid)
		return next(c)
	}
}

// SessionUID returns the uid the session middleware resolved for this
// request.
func SessionUID(c echo.Context) (string, bool) {
	uid, ok := c.Get(uidContextKey).(string)
	return uid, ok && uid != ""
}
