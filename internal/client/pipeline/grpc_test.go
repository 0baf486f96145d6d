package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/authtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

func bearerOf(t *testing.T, ctx context.Context) string {
	t.Helper()
	md, _ := metadata.FromOutgoingContext(ctx)
	toks := md.Get(common.GRPCAuthorizationKey)
	require.Len(t, toks, 1)
	return toks[0]
}

func TestInterceptor_RefreshesOnUnauthenticatedAndRetries(t *testing.T) {
	a1 := authtest.Mint("ada", time.Now().Add(time.Minute))
	a2 := authtest.Mint("ada", time.Now().Add(time.Hour))
	store := newStore(t, a1)
	ref := &fakeRefresher{tok: a2, store: store}

	interceptor := UnaryInterceptor(Policy{Store: store, Refresher: ref, Terminal: &fakeTerminal{}})

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		if callCount == 1 {
			require.Equal(t, "Bearer "+a1, bearerOf(t, ctx))
			assert.Equal(t, AttemptInitial, AttemptFrom(ctx))
			return status.Error(codes.Unauthenticated, "expired")
		}
		require.Equal(t, "Bearer "+a2, bearerOf(t, ctx))
		assert.Equal(t, AttemptRetriedAfterRefresh, AttemptFrom(ctx))
		return nil
	}

	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
	require.Equal(t, 1, ref.Calls())
}

func TestInterceptor_LateUnauthenticatedReusesRenewedToken(t *testing.T) {
	a1 := authtest.Mint("ada", time.Now().Add(-time.Minute))
	a2 := authtest.Mint("ada", time.Now().Add(time.Hour))
	store := newStore(t, a1)
	ref := &fakeRefresher{tok: a2}

	interceptor := UnaryInterceptor(Policy{Store: store, Refresher: ref, Terminal: &fakeTerminal{}})

	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		if calls == 1 {
			require.Equal(t, "Bearer "+a1, bearerOf(t, ctx))
			// Another call renewed the session before this answer arrived.
			require.True(t, store.Write(ctx, a2))
			return status.Error(codes.Unauthenticated, "expired")
		}
		require.Equal(t, "Bearer "+a2, bearerOf(t, ctx))
		assert.Equal(t, AttemptRetriedAfterRefresh, AttemptFrom(ctx))
		return nil
	}

	require.NoError(t, interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker))
	assert.Equal(t, 2, calls)
	assert.Zero(t, ref.Calls())
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	store := newStore(t, authtest.Mint("ada", time.Now().Add(time.Hour)))
	ref := &fakeRefresher{}
	interceptor := UnaryInterceptor(Policy{Store: store, Refresher: ref, Terminal: &fakeTerminal{}})

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Internal, "boom")
	}
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Zero(t, ref.Calls())
}

func TestInterceptor_SecondUnauthenticatedEscalates(t *testing.T) {
	store := newStore(t, authtest.Mint("ada", time.Now().Add(time.Hour)))
	ref := &fakeRefresher{tok: authtest.Mint("ada", time.Now().Add(2*time.Hour))}
	term := &fakeTerminal{}
	interceptor := UnaryInterceptor(Policy{Store: store, Refresher: ref, Terminal: term})

	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, "nope")
	}
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	assert.ErrorIs(t, err, common.ErrRequestUnauthorized)
	assert.Equal(t, 2, calls)
	assert.Len(t, term.Reasons(), 1)
}

func TestInterceptor_RefusesWithoutToken(t *testing.T) {
	term := &fakeTerminal{}
	interceptor := UnaryInterceptor(Policy{Store: newStore(t, ""), Refresher: &fakeRefresher{}, Terminal: term})

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		t.Fatal("invoker must not be called")
		return nil
	}
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.Len(t, term.Reasons(), 1)
}

func TestInterceptor_PublicMethodSkipsToken(t *testing.T) {
	interceptor := UnaryInterceptor(Policy{
		Store:       newStore(t, ""),
		Refresher:   &fakeRefresher{},
		Terminal:    &fakeTerminal{},
		PublicPaths: []string{"/tokenkeeper.auth.v1.AuthService"},
	})

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		assert.Empty(t, md.Get(common.GRPCAuthorizationKey))
		return status.Error(codes.Unauthenticated, "bad credentials")
	}
	err := interceptor(context.Background(), authapi.RenewMethod, nil, nil, nil, invoker)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestInterceptor_EndToEndOverBufconn(t *testing.T) {
	srv := authtest.NewGRPC()
	defer srv.Close()

	store := newStore(t, authtest.Mint("ada", time.Now().Add(-5*time.Second)))

	renewConn, err := srv.Dial()
	require.NoError(t, err)
	defer renewConn.Close()
	coord := refresh.New(store, authapi.NewGRPCRenewer(renewConn))

	term := &fakeTerminal{}
	conn, err := srv.Dial(grpc.WithUnaryInterceptor(UnaryInterceptor(Policy{
		Store:     store,
		Refresher: coord,
		Terminal:  term,
	})))
	require.NoError(t, err)
	defer conn.Close()

	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), authtest.CatalogMethod, &structpb.Struct{}, out)
	require.NoError(t, err)
	assert.Equal(t, "ada", out.GetFields()["subject"].GetStringValue())
	assert.EqualValues(t, 2, srv.Calls())
	assert.EqualValues(t, 1, srv.Renewals())
	assert.Empty(t, term.Reasons())
}
