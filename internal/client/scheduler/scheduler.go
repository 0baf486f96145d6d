// Package scheduler renews the token shortly before it expires so that
// requests rarely meet a 401. One Scheduler belongs to one session.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
)

// DefaultThreshold is how long before expiry the wake fires.
const DefaultThreshold = 300 * time.Second

type State int

const (
	Unarmed State = iota
	Armed
	Firing
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	default:
		return "unarmed"
	}
}

// Lifetime reports the remaining token lifetime.
type Lifetime interface {
	RemainingSeconds(ctx context.Context) int64
}

type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Guard is the part of session.Guard the scheduler uses.
type Guard interface {
	IsSessionUsable(ctx context.Context) bool
	HandleTerminalFailure(ctx context.Context, reason error)
}

// Timer is the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Scheduler struct {
	tokens    Lifetime
	refresher Refresher
	guard     Guard
	threshold time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	log       logging.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	stopped    bool
	state      State
	timer      Timer
	generation uint64
	wakeAt     time.Time
}

type Option func(*Scheduler)

func WithThreshold(d time.Duration) Option {
	return func(s *Scheduler) { s.threshold = d }
}

// WithAfterFunc replaces time.AfterFunc, for tests.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = f }
}

// WithClock replaces time.Now, used only to report NextWake.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(tokens Lifetime, refresher Refresher, guard Guard, opts ...Option) *Scheduler {
	s := &Scheduler{
		tokens:    tokens,
		refresher: refresher,
		guard:     guard,
		threshold: DefaultThreshold,
		afterFunc: realAfterFunc,
		now:       time.Now,
		log:       logging.Nop(),
		ctx:       context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start arms the scheduler for the current token. ctx is used for every
// refresh the scheduler performs; its cancellation does not stop the
// scheduler, Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.arm(false)
}

// VisibilityRegained recomputes the wake. It is a no-op while a refresh is
// running, since that refresh re-arms on completion.
func (s *Scheduler) VisibilityRegained() {
	s.mu.Lock()
	if s.stopped || !s.started || s.state == Firing {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.arm(false)
}

// Stop cancels any pending wake. It is idempotent; after Stop the scheduler
// never refreshes again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancelLocked()
	s.state = Unarmed
	s.metrics.SetSchedulerArmed(false)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextWake returns the delay until the pending wake, if any.
func (s *Scheduler) NextWake() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return 0, false
	}
	d := s.wakeAt.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *Scheduler) cancelLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.wakeAt = time.Time{}
}

// arm cancels any pending wake and either schedules a new one, fires right
// away, or leaves the scheduler unarmed when the session is not usable.
// Right after a refresh a token that is still inside the threshold is
// rescheduled at half its lifetime instead of firing again at once.
func (s *Scheduler) arm(afterRefresh bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.cancelLocked()

	if !s.guard.IsSessionUsable(ctx) {
		s.state = Unarmed
		s.metrics.SetSchedulerArmed(false)
		s.mu.Unlock()
		s.log.Debug(ctx, "scheduler unarmed: no usable session")
		return
	}

	remaining := time.Duration(s.tokens.RemainingSeconds(ctx)) * time.Second
	delay := remaining - s.threshold
	if delay <= 0 && afterRefresh {
		delay = max(remaining/2, time.Second)
	}
	if delay <= 0 {
		s.state = Firing
		gen := s.generation
		s.metrics.SetSchedulerArmed(false)
		s.mu.Unlock()
		go s.fire(gen)
		return
	}

	gen := s.generation
	s.state = Armed
	s.wakeAt = s.now().Add(delay)
	s.timer = s.afterFunc(delay, func() { s.wake(gen) })
	s.metrics.SetSchedulerArmed(true)
	s.mu.Unlock()

	s.log.Debug(ctx, "scheduler armed", "in", delay)
}

// wake is the timer callback. Superseded wakes are ignored.
func (s *Scheduler) wake(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.generation || s.state != Armed {
		s.mu.Unlock()
		return
	}
	s.state = Firing
	s.timer = nil
	s.wakeAt = time.Time{}
	s.metrics.SetSchedulerArmed(false)
	s.mu.Unlock()

	s.fire(gen)
}

// fire refreshes unless the wake was superseded or the scheduler stopped
// while the goroutine was getting scheduled.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.metrics.RecordSchedulerWake()
	s.log.Info(ctx, "proactive refresh")

	_, err := s.refresher.Refresh(ctx)

	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.mu.Unlock()
		s.arm(true)
		return
	}
	s.state = Unarmed
	s.mu.Unlock()

	if common.IsSoftRenewalFailure(err) {
		s.log.Warn(ctx, "proactive refresh failed, will retry on next activity", "err", err)
		return
	}
	s.log.Warn(ctx, "proactive refresh failed, ending session", "err", err)
	s.guard.HandleTerminalFailure(ctx, err)
}

// ErrStopped is returned by RefreshNow after Stop.
var ErrStopped = errors.New("scheduler stopped")

// RefreshNow runs a refresh through the scheduler's refresher and re-arms
// from the result, the way a wake does. Failures are returned, not escalated.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.mu.Unlock()

	if _, err := s.refresher.Refresh(ctx); err != nil {
		return err
	}
	s.VisibilityRegained()
	return nil
}
