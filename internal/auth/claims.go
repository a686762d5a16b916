package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the terminal reads from the backend's bearer token.
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var claimsParser = jwt.NewParser()

// ParseClaims decodes token without checking its signature. The terminal never
// holds the backend secret, so the claims are only advisory: they can shorten a
// session, never lengthen it.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := claimsParser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether the token's own exp has passed at now. A token
// without exp never expires by this check.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}
