package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	tok   string
	err   error
	// store, when set, receives tok on success.
	store *token.Store
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.store != nil {
		f.store.Write(ctx, f.tok)
	}
	return f.tok, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTerminal struct {
	mu      sync.Mutex
	reasons []error
}

func (f *fakeTerminal) HandleTerminalFailure(_ context.Context, reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

func (f *fakeTerminal) Reasons() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.reasons...)
}

func newStore(t *testing.T, tok string) *token.Store {
	t.Helper()
	s := token.NewStore(metadata.NewMemoryRepository())
	if tok != "" {
		require.True(t, s.Write(context.Background(), tok))
	}
	return s
}
