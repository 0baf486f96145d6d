package pipeline

import "context"

// Attempt marks whether a call is on its first try or is the single retry
// that follows a successful refresh.
type Attempt int

const (
	AttemptInitial Attempt = iota
	AttemptRetriedAfterRefresh
)

func (a Attempt) String() string {
	if a == AttemptRetriedAfterRefresh {
		return "retried"
	}
	return "initial"
}

type attemptKey struct{}

func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFrom returns the attempt carried by ctx, AttemptInitial if none.
func AttemptFrom(ctx context.Context) Attempt {
	a, _ := ctx.Value(attemptKey{}).(Attempt)
	return a
}
