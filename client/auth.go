package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the expiry claim from an auth token without verifying
// its signature; the client never holds the server's signing key. The zero
// time is returned when the token carries no expiry claim.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// TokenExpiry returns the expiry of the configured auth token. The second
// return is false when no token is configured, the token does not parse, or
// it has no expiry claim.
func (c *Client) TokenExpiry() (time.Time, bool) {
	if c.opts.AuthToken == "" {
		return time.Time{}, false
	}
	exp, err := TokenExpiry(c.opts.AuthToken)
	if err != nil || exp.IsZero() {
		return time.Time{}, false
	}
	return exp, true
}

// warnIfTokenExpired logs when the configured token's expiry claim is in the
// past. The token is still sent; the server stays authoritative.
func (c *Client) warnIfTokenExpired() {
	exp, ok := c.TokenExpiry()
	if !ok {
		return
	}
	if remaining := time.Until(exp); remaining < 0 {
		c.logger.Warn("auth token is expired",
			String("expired_at", exp.Format(time.RFC3339)),
			Duration("expired_for", -remaining))
	}
}
