// Package token reads the claims of the backend-issued access token for
// display. Nothing here verifies a signature: the client does not hold the
// backend key and never treats a decoded claim as proof of anything.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrEmptyToken = errors.New("empty token")

// Claims is the unverified view of an access token.
type Claims struct {
	Subject   string     // Username the backend signed for
	Issuer    string     // Empty when the backend sets none
	ID        string     // jti
	UserID    int64      // uid claim, 0 when absent
	Role      string     // role claim, empty when absent
	IssuedAt  *time.Time // nil when absent
	ExpiresAt *time.Time // nil when the token never expires
}

// Expired reports whether the token is past its exp at now.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Remaining returns the time left before expiry, zero once expired. ok is
// false when the token carries no exp.
func (c Claims) Remaining(now time.Time) (time.Duration, bool) {
	if c.ExpiresAt == nil {
		return 0, false
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

// Inspect decodes raw without verifying it.
func Inspect(raw string) (Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return Claims{}, ErrEmptyToken
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("[token Inspect] %w", err)
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.New("[token Inspect] error extracting claims")
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	c.ID, _ = mc["jti"].(string)
	c.Role, _ = mc["role"].(string)
	if uid, ok := mc["uid"].(float64); ok {
		c.UserID = int64(uid)
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		c.IssuedAt = &t
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		c.ExpiresAt = &t
	}
	return c, nil
}
