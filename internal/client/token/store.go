// Package token owns the persisted bearer token: reading, writing and
// classifying it (absent, malformed, valid, expired).
package token

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
)

// MinTokenLength is the shortest string accepted as a token. A compact JWT
// with an empty payload is already longer than this.
const MinTokenLength = 20

// State classifies the stored token.
type State int

const (
	StateAbsent State = iota
	StateMalformed
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateMalformed:
		return "malformed"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Err maps a non-valid state to its sentinel error.
func (s State) Err() error {
	switch s {
	case StateAbsent:
		return common.ErrTokenAbsent
	case StateMalformed:
		return common.ErrTokenMalformed
	case StateExpired:
		return common.ErrTokenExpired
	default:
		return nil
	}
}

// Session pairs a token with the user profile returned alongside it. The
// profile is opaque and passed through unchanged.
type Session struct {
	Token   string
	Profile json.RawMessage
}

// IsPlausible is the structural check applied before a token is stored or
// attached: non-empty, long enough and not a serialized null.
func IsPlausible(tok string) bool {
	t := strings.TrimSpace(tok)
	if len(t) < MinTokenLength {
		return false
	}
	switch strings.ToLower(t) {
	case "null", "undefined":
		return false
	}
	return true
}

// Store is the single source of truth for the current token. Every read goes
// to the repository; nothing is cached in memory.
type Store struct {
	repo metadata.Repository
	log  logging.Logger
	now  func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(repo metadata.Repository, opts ...Option) *Store {
	s := &Store{repo: repo, log: logging.Nop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Read returns the stored token. Storage errors are logged and reported as
// absent.
func (s *Store) Read(ctx context.Context) (string, bool) {
	v, err := s.repo.Get(ctx, common.TokenKey)
	if err != nil {
		s.log.Warn(ctx, "token read failed", "err", err)
		return "", false
	}
	if len(v) == 0 {
		return "", false
	}
	return string(v), true
}

// Write stores tok if it is plausible. It returns false and leaves the prior
// token untouched otherwise.
func (s *Store) Write(ctx context.Context, tok string) bool {
	return s.WriteSession(ctx, Session{Token: tok})
}

// WriteSession stores the token and, when present, the profile. On
// repositories that support it both keys are written in one transaction.
func (s *Store) WriteSession(ctx context.Context, sess Session) bool {
	if !IsPlausible(sess.Token) {
		s.log.Warn(ctx, "rejected implausible token", "length", len(sess.Token))
		return false
	}
	tok := strings.TrimSpace(sess.Token)

	write := func(ctx context.Context, repo metadata.Repository) error {
		if err := repo.Set(ctx, common.TokenKey, []byte(tok)); err != nil {
			return err
		}
		if len(sess.Profile) > 0 {
			return repo.Set(ctx, common.ProfileKey, sess.Profile)
		}
		return nil
	}

	var err error
	if tx, ok := s.repo.(metadata.Transactional); ok {
		err = tx.WithTx(ctx, write)
	} else {
		err = write(ctx, s.repo)
	}
	if err != nil {
		s.log.Error(ctx, "token write failed", "err", err)
		return false
	}
	return true
}

// Profile returns the cached user profile.
func (s *Store) Profile(ctx context.Context) (json.RawMessage, bool) {
	v, err := s.repo.Get(ctx, common.ProfileKey)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return json.RawMessage(v), true
}

// Clear removes the token and the profile. Calling it on an empty store is a
// no-op.
func (s *Store) Clear(ctx context.Context) {
	for _, key := range []string{common.TokenKey, common.ProfileKey} {
		if err := s.repo.Delete(ctx, key); err != nil {
			s.log.Error(ctx, "session clear failed", "key", key, "err", err)
		}
	}
}

// IsValid is a format check only; it says nothing about expiry.
func (s *Store) IsValid(ctx context.Context) bool {
	tok, ok := s.Read(ctx)
	return ok && IsPlausible(tok)
}

// IsExpired is true for an absent or undecodable token, or one whose exp is
// not in the future.
func (s *Store) IsExpired(ctx context.Context) bool {
	return s.RemainingSeconds(ctx) == 0
}

// RemainingSeconds is exp - now in whole seconds, or 0 when the token is
// expired, absent or malformed.
func (s *Store) RemainingSeconds(ctx context.Context) int64 {
	exp, ok := s.expiry(ctx)
	if !ok {
		return 0
	}
	remaining := exp.Unix() - s.now().Unix()
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// State classifies the stored token.
func (s *Store) State(ctx context.Context) State {
	tok, ok := s.Read(ctx)
	if !ok {
		return StateAbsent
	}
	if !IsPlausible(tok) {
		return StateMalformed
	}
	exp, ok := DecodeExpiry(tok)
	if !ok {
		return StateMalformed
	}
	if exp.Unix() <= s.now().Unix() {
		return StateExpired
	}
	return StateValid
}

// Now is the store's clock; the scheduler and guard share it.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) expiry(ctx context.Context) (time.Time, bool) {
	tok, ok := s.Read(ctx)
	if !ok || !IsPlausible(tok) {
		return time.Time{}, false
	}
	return DecodeExpiry(tok)
}
