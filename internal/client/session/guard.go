// Package session decides whether the current session may be used, gates
// protected and unauthenticated views, and tears the session down after a
// terminal failure.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
)

// Action is what a gate tells the caller to do.
type Action int

const (
	Render Action = iota
	Redirect
)

// Decision is the outcome of a gate. Route is set for Redirect.
type Decision struct {
	Action Action
	Route  string
}

// Invalidation is broadcast when the session is torn down.
type Invalidation struct {
	Reason error
	At     time.Time
}

// Guard checks session usability and tears sessions down.
type Guard struct {
	store   *token.Store
	nav     Navigator
	log     logging.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Invalidation
}

type Option func(*Guard)

func WithLogger(l logging.Logger) Option {
	return func(g *Guard) { g.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func NewGuard(store *token.Store, nav Navigator, opts ...Option) *Guard {
	g := &Guard{
		store: store,
		nav:   nav,
		log:   logging.Nop(),
		subs:  make(map[int]chan Invalidation),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Navigator returns the navigator the guard drives.
func (g *Guard) Navigator() Navigator { return g.nav }

// IsSessionUsable is true when a plausible, unexpired token is stored.
func (g *Guard) IsSessionUsable(ctx context.Context) bool {
	return g.store.IsValid(ctx) && !g.store.IsExpired(ctx)
}

// CanEnter is asked by protected views before rendering.
func (g *Guard) CanEnter(ctx context.Context) bool {
	return g.IsSessionUsable(ctx)
}

func (g *Guard) ProtectedGate(ctx context.Context, route string) Decision {
	if g.IsSessionUsable(ctx) {
		return Decision{Action: Render, Route: route}
	}
	return Decision{Action: Redirect, Route: LoginRoute}
}

func (g *Guard) UnauthenticatedGate(ctx context.Context, route string) Decision {
	if g.IsSessionUsable(ctx) {
		return Decision{Action: Redirect, Route: DefaultRoute}
	}
	return Decision{Action: Render, Route: route}
}

// HandleTerminalFailure clears the session, notifies subscribers and sends
// the user to login unless they already are on an unauthenticated route.
func (g *Guard) HandleTerminalFailure(ctx context.Context, reason error) {
	g.log.Warn(ctx, "session invalidated", "reason", reason)
	g.store.Clear(ctx)
	g.metrics.RecordInvalidation(reason)
	g.broadcast(Invalidation{Reason: reason, At: g.store.Now()})

	if g.nav == nil {
		return
	}
	if IsUnauthenticatedRoute(g.nav.Current()) {
		return
	}
	g.nav.GoTo(LoginRoute)
}

// Subscribe returns a channel that receives an Invalidation each time the
// session is torn down, and a func to unsubscribe. Slow subscribers miss
// notifications rather than block the guard.
func (g *Guard) Subscribe() (<-chan Invalidation, func()) {
	ch := make(chan Invalidation, 1)

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = ch
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
			close(ch)
		})
	}
}

func (g *Guard) broadcast(ev Invalidation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
