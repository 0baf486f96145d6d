package pipeline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/authtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/session"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// A rejected renewal ends the session through the real guard: the store is
// cleared, protected views are closed and the user lands on login once.
func TestClient_RejectedRenewalEndsSessionThroughGuard(t *testing.T) {
	srv := authtest.New()
	defer srv.Close()
	srv.RenewStatus = http.StatusUnauthorized

	ctx := context.Background()
	store := newStore(t, authtest.Mint("ada", time.Now().Add(-time.Minute)))
	nav := session.NewRouteNavigator("/reports")
	guard := session.NewGuard(store, nav)
	events, unsubscribe := guard.Subscribe()
	defer unsubscribe()

	coord := refresh.New(store, authapi.NewHTTPClient(authapi.HTTPClientOpts{BaseURL: srv.URL}))
	c := newHTTP(srv, Policy{Store: store, Refresher: coord, Terminal: guard})

	_, err := c.Get(ctx, "/api/reports", nil)
	require.ErrorIs(t, err, common.ErrRequestUnauthorized)
	require.ErrorIs(t, err, common.ErrRenewalRejected)

	assert.EqualValues(t, 1, srv.Renewals())
	assert.Equal(t, token.StateAbsent, store.State(ctx))
	assert.False(t, guard.CanEnter(ctx))
	assert.Equal(t, session.Decision{Action: session.Redirect, Route: session.LoginRoute},
		guard.ProtectedGate(ctx, "/reports"))
	assert.Equal(t, []string{session.LoginRoute}, nav.History())

	select {
	case ev := <-events:
		assert.ErrorIs(t, ev.Reason, common.ErrRenewalRejected)
	default:
		t.Fatal("no invalidation delivered")
	}

	// Already on login: a later protected call is refused locally without
	// another renewal or navigation.
	_, err = c.Get(ctx, "/api/reports", nil)
	require.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.EqualValues(t, 1, srv.Renewals())
	assert.Equal(t, []string{session.LoginRoute}, nav.History())
}
