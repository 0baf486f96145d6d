package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of token claims the client looks at. The signature is
// never verified on this side; only the server can do that.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       jwt.MapClaims
}

// DecodeExpiry extracts the exp claim without contacting the network. Any
// parse failure, a missing exp or a non-numeric exp yields ok == false, which
// callers must treat as expired.
func DecodeExpiry(tok string) (exp time.Time, ok bool) {
	claims, err := DecodeClaims(tok)
	if err != nil || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// DecodeClaims parses tok without verifying it.
func DecodeClaims(tok string) (*Claims, error) {
	raw := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, raw); err != nil {
		return nil, err
	}

	c := &Claims{Raw: raw}
	exp, err := raw.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Subject, _ = raw.GetSubject()
	return c, nil
}
