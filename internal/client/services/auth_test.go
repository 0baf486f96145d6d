package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/authtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/session"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// ---- helpers ----

type fixture struct {
	srv   *authtest.Server
	store *token.Store
	nav   *session.RouteNavigator
	guard *session.Guard
	svc   AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{srv: authtest.New()}
	t.Cleanup(f.srv.Close)

	api := authapi.NewHTTPClient(authapi.HTTPClientOpts{BaseURL: f.srv.URL, Timeout: 2 * time.Second})
	f.store = token.NewStore(metadata.NewMemoryRepository())
	coord := refresh.New(f.store, api)
	f.nav = session.NewRouteNavigator(session.LoginRoute)
	f.guard = session.NewGuard(f.store, f.nav)

	f.svc = NewAuthService(api, f.store, coord, f.guard, func() *scheduler.Scheduler {
		return scheduler.New(f.store, coord, f.guard)
	}, nil)
	t.Cleanup(func() { _ = f.svc.Close(context.Background()) })
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Login(context.Background(), "ada@example.org", []byte("password")))
}

// ---- tests ----

func TestLogin_StartsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.login(t)

	st := f.svc.Status(ctx)
	assert.Equal(t, token.StateValid, st.State)
	assert.Equal(t, "ada@example.org", st.Subject)
	assert.JSONEq(t, `{"name":"Ada","role":"admin"}`, string(st.Profile))
	assert.Equal(t, scheduler.Armed, st.SchedulerState)
	assert.True(t, st.WakePending)
	assert.InDelta(t, (55 * time.Minute).Seconds(), st.NextWake.Seconds(), 5)
	assert.Equal(t, session.DefaultRoute, f.nav.Current())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Login(context.Background(), "ada@example.org", []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, token.StateAbsent, f.svc.Status(context.Background()).State)
	assert.Equal(t, session.LoginRoute, f.nav.Current())
}

func TestLogout_ClearsSessionAndStopsScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	require.NoError(t, f.svc.Logout(ctx))

	st := f.svc.Status(ctx)
	assert.Equal(t, token.StateAbsent, st.State)
	assert.False(t, st.WakePending)
	_, ok := f.store.Profile(ctx)
	assert.False(t, ok)
	assert.Equal(t, session.LoginRoute, f.nav.Current())
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.False(t, f.svc.Restore(ctx))

	require.True(t, f.store.Write(ctx, authtest.Mint("ada", time.Now().Add(time.Hour))))
	assert.True(t, f.svc.Restore(ctx))
	assert.Equal(t, scheduler.Armed, f.svc.Status(ctx).SchedulerState)
	assert.Equal(t, session.DefaultRoute, f.nav.Current())
}

func TestRestore_ExpiredSessionIsNotUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.store.Write(ctx, authtest.Mint("ada", time.Now().Add(-time.Hour))))
	assert.False(t, f.svc.Restore(ctx))
	assert.False(t, f.svc.Status(ctx).WakePending)
}

func TestInvalidation_StopsScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	f.guard.HandleTerminalFailure(ctx, common.ErrRenewalRejected)

	require.Eventually(t, func() bool {
		return !f.svc.Status(ctx).WakePending
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, session.LoginRoute, f.nav.Current())
}

func TestRefresh_RenewsThroughCoordinator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	before, _ := f.store.Read(ctx)

	require.NoError(t, f.svc.Refresh(ctx))

	after, _ := f.store.Read(ctx)
	assert.NotEqual(t, before, after)
	assert.EqualValues(t, 1, f.srv.Renewals())
	assert.Equal(t, scheduler.Armed, f.svc.Status(ctx).SchedulerState)
}

func TestRefresh_WithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Refresh(context.Background())
	assert.ErrorIs(t, err, common.ErrTokenAbsent)
	assert.Zero(t, f.srv.Renewals())
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.Resume(ctx)
	assert.False(t, f.svc.Status(ctx).WakePending)

	f.login(t)
	f.svc.Resume(ctx)
	assert.Equal(t, scheduler.Armed, f.svc.Status(ctx).SchedulerState)
}

func TestPublicFlows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "bob@example.org", []byte("pw"), "Bob"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "bob@example.org"))
	require.NoError(t, f.svc.ResetPassword(ctx, "123456", []byte("pw2")))
	assert.EqualValues(t, 3, f.srv.PublicCalls())
}
