package session

import (
	"strings"
	"sync"
)

// Routes known to the guard.
const (
	LoginRoute          = "/login"
	SignupRoute         = "/signup"
	ForgotPasswordRoute = "/forgot-password"
	ResetPasswordRoute  = "/reset-password"
	DefaultRoute        = "/home"
)

// UnauthenticatedRoutes are reachable without a session.
var UnauthenticatedRoutes = []string{LoginRoute, SignupRoute, ForgotPasswordRoute, ResetPasswordRoute}

// IsUnauthenticatedRoute reports whether route is, or is nested under, one of
// UnauthenticatedRoutes. Query, fragment and a trailing slash are ignored.
func IsUnauthenticatedRoute(route string) bool {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	for _, r := range UnauthenticatedRoutes {
		if route == r || strings.HasPrefix(route, r+"/") {
			return true
		}
	}
	return false
}

// Navigator is the routing collaborator the guard drives.
type Navigator interface {
	Current() string
	GoTo(route string)
}

// RouteNavigator is an in-process Navigator. OnChange, when set, is called
// after every GoTo with the new route.
type RouteNavigator struct {
	mu       sync.Mutex
	current  string
	history  []string
	OnChange func(route string)
}

func NewRouteNavigator(start string) *RouteNavigator {
	return &RouteNavigator{current: start}
}

func (n *RouteNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *RouteNavigator) GoTo(route string) {
	n.mu.Lock()
	n.current = route
	n.history = append(n.history, route)
	cb := n.OnChange
	n.mu.Unlock()

	if cb != nil {
		cb(route)
	}
}

// History returns every route passed to GoTo, oldest first.
func (n *RouteNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}
