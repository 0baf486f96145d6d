// Package services contains application services for the tokenkeeper client.
// This file defines the session service: login, signup, password reset,
// logout, explicit refresh and resume, and the per-session scheduler.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/session"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
)

// AuthService defines session operations for the CLI.
//
// Contract:
//   - Login: exchange credentials for a session, persist it and start the
//     proactive scheduler.
//   - Restore: pick up a session persisted by an earlier run.
//   - Signup, ForgotPassword, ResetPassword: unauthenticated calls.
//   - Logout: stop the scheduler and clear the persisted session.
//   - Refresh: renew now through the shared coordinator.
//   - Resume: the client became active again; recompute the wake.
//   - Status: snapshot of the session for display.
//   - Close: stop background work.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, email string, password []byte) error
	Restore(ctx context.Context) bool
	Signup(ctx context.Context, email string, password []byte, name string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code string, password []byte) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Resume(ctx context.Context)
	Status(ctx context.Context) Status
	Close(ctx context.Context) error
}

// AuthAPI is the unauthenticated part of the auth service.
type AuthAPI interface {
	Login(ctx context.Context, creds authapi.Credentials) (token.Session, error)
	Signup(ctx context.Context, in authapi.SignupRequest) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in authapi.ResetPasswordRequest) error
}

// SchedulerFactory builds a fresh scheduler for a new session.
type SchedulerFactory func() *scheduler.Scheduler

// Status describes the current session.
type Status struct {
	State          token.State
	Subject        string
	Remaining      time.Duration
	Profile        json.RawMessage
	SchedulerState scheduler.State
	NextWake       time.Duration
	WakePending    bool
}

type authService struct {
	api          AuthAPI
	store        *token.Store
	refresher    scheduler.Refresher
	guard        *session.Guard
	newScheduler SchedulerFactory
	log          logging.Logger

	mu    sync.Mutex
	sched *scheduler.Scheduler

	unsubscribe func()
	done        chan struct{}
}

// NewAuthService wires the session service. It listens for session
// invalidations from guard and stops the scheduler when one arrives.
func NewAuthService(api AuthAPI, store *token.Store, refresher scheduler.Refresher, guard *session.Guard, newScheduler SchedulerFactory, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	a := &authService{
		api:          api,
		store:        store,
		refresher:    refresher,
		guard:        guard,
		newScheduler: newScheduler,
		log:          log,
		done:         make(chan struct{}),
	}

	events, unsubscribe := guard.Subscribe()
	a.unsubscribe = unsubscribe
	go a.watchInvalidations(events)

	return a
}

func (a *authService) watchInvalidations(events <-chan session.Invalidation) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.log.Info(context.Background(), "session ended", "reason", ev.Reason)
			a.stopScheduler()
		case <-a.done:
			return
		}
	}
}

func (a *authService) startScheduler(ctx context.Context) {
	a.mu.Lock()
	old := a.sched
	a.sched = a.newScheduler()
	s := a.sched
	a.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	s.Start(ctx)
}

func (a *authService) stopScheduler() {
	a.mu.Lock()
	s := a.sched
	a.sched = nil
	a.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}

func (a *authService) scheduler() *scheduler.Scheduler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sched
}

// Login authenticates against the server, persists the session and starts
// the proactive scheduler. Wrong credentials yield common.ErrInvalidCredentials.
func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	sess, err := a.api.Login(ctx, authapi.Credentials{Email: email, Password: string(password)})
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	if !a.store.WriteSession(ctx, sess) {
		return fmt.Errorf("login error: %w", common.ErrRenewalMalformed)
	}

	a.startScheduler(ctx)
	if nav := a.guard.Navigator(); nav != nil {
		nav.GoTo(session.DefaultRoute)
	}
	return nil
}

// Restore resumes a session persisted by an earlier run, if it is usable.
func (a *authService) Restore(ctx context.Context) bool {
	if !a.guard.IsSessionUsable(ctx) {
		return false
	}
	a.startScheduler(ctx)
	if nav := a.guard.Navigator(); nav != nil {
		if d := a.guard.UnauthenticatedGate(ctx, nav.Current()); d.Action == session.Redirect {
			nav.GoTo(d.Route)
		}
	}
	return true
}

func (a *authService) Signup(ctx context.Context, email string, password []byte, name string) error {
	return a.api.Signup(ctx, authapi.SignupRequest{Email: email, Password: string(password), Name: name})
}

func (a *authService) ForgotPassword(ctx context.Context, email string) error {
	return a.api.ForgotPassword(ctx, email)
}

func (a *authService) ResetPassword(ctx context.Context, code string, password []byte) error {
	return a.api.ResetPassword(ctx, authapi.ResetPasswordRequest{Code: code, Password: string(password)})
}

// Logout stops the scheduler, clears the persisted session and returns to
// the login route.
func (a *authService) Logout(ctx context.Context) error {
	a.stopScheduler()
	a.store.Clear(ctx)
	if nav := a.guard.Navigator(); nav != nil {
		nav.GoTo(session.LoginRoute)
	}
	return nil
}

// Refresh renews the token now. With a running scheduler the wake is
// recomputed from the new token.
func (a *authService) Refresh(ctx context.Context) error {
	if s := a.scheduler(); s != nil {
		return s.RefreshNow(ctx)
	}
	_, err := a.refresher.Refresh(ctx)
	return err
}

// Resume is the visibility-regained signal.
func (a *authService) Resume(ctx context.Context) {
	if s := a.scheduler(); s != nil {
		s.VisibilityRegained()
		return
	}
	a.Restore(ctx)
}

func (a *authService) Status(ctx context.Context) Status {
	st := Status{
		State:     a.store.State(ctx),
		Remaining: time.Duration(a.store.RemainingSeconds(ctx)) * time.Second,
	}
	if tok, ok := a.store.Read(ctx); ok {
		if c, err := token.DecodeClaims(tok); err == nil {
			st.Subject = c.Subject
		}
	}
	st.Profile, _ = a.store.Profile(ctx)
	if s := a.scheduler(); s != nil {
		st.SchedulerState = s.State()
		st.NextWake, st.WakePending = s.NextWake()
	}
	return st
}

func (a *authService) Close(ctx context.Context) error {
	a.stopScheduler()
	select {
	case <-a.done:
	default:
		close(a.done)
	}
	a.unsubscribe()
	return nil
}
