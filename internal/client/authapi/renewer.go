package authapi

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
)

// Renewer exchanges a still-accepted token for a fresh one. Implementations
// never retry on their own.
type Renewer interface {
	Renew(ctx context.Context, current string) (token.Session, error)
}

// RenewerFunc adapts a function to Renewer.
type RenewerFunc func(ctx context.Context, current string) (token.Session, error)

func (f RenewerFunc) Renew(ctx context.Context, current string) (token.Session, error) {
	return f(ctx, current)
}

type sessionResponse struct {
	Token   string          `json:"token"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

func (r sessionResponse) session() token.Session {
	s := token.Session{Token: r.Token}
	if len(r.Profile) > 0 && string(r.Profile) != "null" {
		s.Profile = r.Profile
	}
	return s
}
