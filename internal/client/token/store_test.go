package token

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

var fixedNow = time.Unix(1_800_000_000, 0)

func newTestStore() (*Store, *metadata.MemoryRepository) {
	repo := metadata.NewMemoryRepository()
	return NewStore(repo, WithClock(func() time.Time { return fixedNow })), repo
}

// failingRepo fails every call.
type failingRepo struct{ metadata.MemoryRepository }

var errBoom = errors.New("boom")

func (*failingRepo) Get(context.Context, string) ([]byte, error) { return nil, errBoom }
func (*failingRepo) Set(context.Context, string, []byte) error   { return errBoom }
func (*failingRepo) Delete(context.Context, string) error        { return errBoom }

func TestIsPlausible(t *testing.T) {
	assert.False(t, IsPlausible(""))
	assert.False(t, IsPlausible("   "))
	assert.False(t, IsPlausible("short"))
	assert.False(t, IsPlausible("null"))
	assert.False(t, IsPlausible("UNDEFINED"))
	assert.True(t, IsPlausible("abcdefghijklmnopqrstuvwxyz"))
}

func TestStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, ok := s.Read(ctx)
	assert.False(t, ok)

	tok := authtest.Mint("ada", fixedNow.Add(time.Hour))
	require.True(t, s.Write(ctx, tok))

	got, ok := s.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, tok, got)
	assert.True(t, s.IsValid(ctx))
}

func TestStore_WriteRejectsImplausible(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	tok := authtest.Mint("ada", fixedNow.Add(time.Hour))
	require.True(t, s.Write(ctx, tok))

	for _, bad := range []string{"", "null", "undefined", "tiny"} {
		assert.False(t, s.Write(ctx, bad), bad)
	}

	got, _ := s.Read(ctx)
	assert.Equal(t, tok, got, "prior token must survive a rejected write")
}

func TestStore_WriteSessionAndClear(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestStore()

	profile := json.RawMessage(`{"name":"Ada"}`)
	require.True(t, s.WriteSession(ctx, Session{
		Token:   authtest.Mint("ada", fixedNow.Add(time.Hour)),
		Profile: profile,
	}))

	got, ok := s.Profile(ctx)
	require.True(t, ok)
	assert.JSONEq(t, string(profile), string(got))

	s.Clear(ctx)
	s.Clear(ctx)

	_, ok = s.Read(ctx)
	assert.False(t, ok)
	_, ok = s.Profile(ctx)
	assert.False(t, ok)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_WriteSessionKeepsProfileWhenOmitted(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.True(t, s.WriteSession(ctx, Session{
		Token:   authtest.Mint("ada", fixedNow.Add(time.Hour)),
		Profile: json.RawMessage(`{"name":"Ada"}`),
	}))
	require.True(t, s.Write(ctx, authtest.Mint("ada", fixedNow.Add(2*time.Hour))))

	_, ok := s.Profile(ctx)
	assert.True(t, ok)
}

func TestStore_RemainingAndState(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		token     string
		remaining int64
		expired   bool
		state     State
	}{
		{"absent", "", 0, true, StateAbsent},
		{"future", authtest.Mint("ada", fixedNow.Add(200*time.Second)), 200, false, StateValid},
		{"past", authtest.Mint("ada", fixedNow.Add(-5*time.Second)), 0, true, StateExpired},
		{"exactly now", authtest.Mint("ada", fixedNow), 0, true, StateExpired},
		{"undecodable", "this-is-long-enough-but-not-a-jwt", 0, true, StateMalformed},
		{"no exp", unsignedJWT(`{"sub":"ada"}`), 0, true, StateMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo := newTestStore()
			if tt.token != "" {
				require.NoError(t, repo.Set(ctx, common.TokenKey, []byte(tt.token)))
			}
			assert.Equal(t, tt.remaining, s.RemainingSeconds(ctx))
			assert.Equal(t, tt.expired, s.IsExpired(ctx))
			assert.Equal(t, tt.state, s.State(ctx))
		})
	}
}

func TestState_Err(t *testing.T) {
	assert.ErrorIs(t, StateAbsent.Err(), common.ErrTokenAbsent)
	assert.ErrorIs(t, StateMalformed.Err(), common.ErrTokenMalformed)
	assert.ErrorIs(t, StateExpired.Err(), common.ErrTokenExpired)
	assert.NoError(t, StateValid.Err())
	assert.Equal(t, "expired", StateExpired.String())
}

func TestStore_StorageErrorsReadAsAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&failingRepo{})

	_, ok := s.Read(ctx)
	assert.False(t, ok)
	assert.False(t, s.Write(ctx, authtest.Mint("ada", time.Now().Add(time.Hour))))
	assert.True(t, s.IsExpired(ctx))
	assert.NotPanics(t, func() { s.Clear(ctx) })
}

func TestStore_TransactionalWriteOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	s := NewStore(metadata.NewSQLiteRepository(db), WithClock(func() time.Time { return fixedNow }))
	require.True(t, s.WriteSession(ctx, Session{
		Token:   authtest.Mint("ada", fixedNow.Add(time.Minute)),
		Profile: json.RawMessage(`{"role":"admin"}`),
	}))

	assert.Equal(t, int64(60), s.RemainingSeconds(ctx))
	p, ok := s.Profile(ctx)
	require.True(t, ok)
	assert.JSONEq(t, `{"role":"admin"}`, string(p))
}
