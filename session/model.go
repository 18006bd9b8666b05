package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session defines a public type used by enrollflow APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the session expiry as unix seconds. Zero means no
	// explicit expiry; the published record then carries no TTL.
	ExpiresAt int64
}

// Expired reports whether the session carries an explicit expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt > 0 && now.Unix() > s.ExpiresAt
}

// TTL returns the remaining lifetime relative to now, or zero when the
// session has no explicit expiry.
func (s *Session) TTL(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt == 0 {
		return 0
	}
	d := time.Unix(s.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// BackfillExpiry fills a zero ExpiresAt (and empty UserID) from the access
// token's registered claims when the token parses as a JWT. The token was
// issued by the trusted provider over an authenticated channel; only claim
// extraction is needed here, not signature validation.
func (s *Session) BackfillExpiry() {
	if s == nil || s.AccessToken == "" {
		return
	}
	if s.ExpiresAt != 0 && s.UserID != "" {
		return
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return
	}

	if s.ExpiresAt == 0 && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if s.UserID == "" && claims.Subject != "" {
		s.UserID = claims.Subject
	}
}
