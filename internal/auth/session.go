// Package auth holds the authenticated user context the engine is given by
// the outer application. Token delivery (magic links, OTP) happens elsewhere;
// this package only reads identity out of an already-issued access token.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmorrow1204/kitchensync/internal/common"
)

// Session identifies the current user for the lifetime of one engine
// session.
type Session struct {
	token     string
	userID    string
	expiresAt *time.Time
}

// NewSession extracts the user id (the JWT subject) and expiry from an
// access token. The signature is the backend's to verify; the client only
// needs the claims, so the token is parsed unverified.
func NewSession(token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	s := &Session{token: token, userID: claims.Subject}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		s.expiresAt = &t
	}
	return s, nil
}

// UserID is the authenticated user's id.
func (s *Session) UserID() string { return s.userID }

// Token returns the raw access token for outbound requests.
func (s *Session) Token() string { return s.token }

// Expired reports whether the token's expiry has passed at the given time.
// Tokens without an exp claim never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	return s.expiresAt != nil && !now.Before(*s.expiresAt)
}
