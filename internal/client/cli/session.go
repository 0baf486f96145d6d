package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Status prints the session state, remaining lifetime and the next
// scheduled renewal.
func (a *App) Status(ctx context.Context) error {
	st := a.authService.Status(ctx)

	a.printf("route:     %s\n", a.getStatus())
	a.printf("token:     %s\n", st.State)
	if st.Subject != "" {
		a.printf("subject:   %s\n", st.Subject)
	}
	if st.Remaining > 0 {
		a.printf("expires:   in %s\n", st.Remaining.Round(time.Second))
	}
	if len(st.Profile) > 0 {
		a.printf("profile:   %s\n", st.Profile)
	}
	a.printf("scheduler: %s", st.SchedulerState)
	if st.WakePending {
		a.printf(" (renewal in %s)", st.NextWake.Round(time.Second))
	}
	a.printf("\n")
	return nil
}

// Get fetches a protected path and prints the answer.
func (a *App) Get(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	body, err := a.resourceService.Get(ctx, path)
	if err != nil {
		a.reportCallError(err)
		return err
	}
	a.printf("%s\n", body)
	return nil
}

// RPC invokes a unary gRPC method and prints the answer.
func (a *App) RPC(ctx context.Context, method string) error {
	out, err := a.resourceService.Call(ctx, method)
	if err != nil {
		a.reportCallError(err)
		return err
	}
	a.printf("%s\n", out)
	return nil
}

// Refresh renews the token now.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		a.printf("Refresh failed: %v\n", err)
		return err
	}
	a.printf("Token renewed.\n")
	return nil
}

// Resume signals that the client is active again after a pause.
func (a *App) Resume(ctx context.Context) error {
	a.authService.Resume(ctx)
	return nil
}

func (a *App) reportCallError(err error) {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated):
		a.printf("Not logged in.\n")
	case errors.Is(err, common.ErrRequestUnauthorized):
		a.printf("Unauthorized: %v\n", err)
	default:
		a.printf("Request failed: %v\n", err)
	}
}
