package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/pipeline"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/refresh"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/session"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
)

type App struct {
	config          *config.Config
	log             logging.Logger
	authService     services.AuthService
	resourceService services.ResourceService
	guard           *session.Guard
	nav             *session.RouteNavigator
	reader          *bufio.Reader
	out             io.Writer
	closers         []func() error
}

// NewApp builds the full client stack from c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, m *metrics.Metrics) (*App, error) {
	a := &App{
		config: c,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	repo, closeStore, err := client.OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	store := token.NewStore(repo, token.WithLogger(log.With("component", "store")))

	authAPI := authapi.NewHTTPClient(authapi.HTTPClientOpts{
		BaseURL: c.ServerURL,
		Timeout: c.RequestTimeout,
		Logger:  log.With("component", "authapi"),
	})

	var renewer authapi.Renewer = authAPI
	var rpcConn grpc.ClientConnInterface
	var policy pipeline.Policy

	if c.GRPCAddr != "" {
		renewConn, err := client.DialGRPC(c.GRPCAddr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error dialing %s: %w", c.GRPCAddr, err)
		}
		a.closers = append(a.closers, renewConn.Close)
		renewer = authapi.NewGRPCRenewer(renewConn)
	}

	coord := refresh.New(store, renewer,
		refresh.WithLogger(log.With("component", "refresh")),
		refresh.WithMetrics(m),
	)

	a.nav = session.NewRouteNavigator(session.LoginRoute)
	a.nav.OnChange = func(route string) {
		log.Debug(context.Background(), "navigated", "route", route)
	}
	a.guard = session.NewGuard(store, a.nav,
		session.WithLogger(log.With("component", "guard")),
		session.WithMetrics(m),
	)

	policy = pipeline.Policy{
		Store:         store,
		Refresher:     coord,
		Terminal:      a.guard,
		GracefulPaths: c.GracefulPaths,
		Logger:        log.With("component", "pipeline"),
		Metrics:       m,
	}
	api := pipeline.NewClient(pipeline.ClientOpts{
		BaseURL: c.ServerURL,
		Timeout: c.RequestTimeout,
		Policy:  policy,
	})

	if c.GRPCAddr != "" {
		conn, err := client.DialGRPC(c.GRPCAddr, grpc.WithUnaryInterceptor(pipeline.UnaryInterceptor(policy)))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error dialing %s: %w", c.GRPCAddr, err)
		}
		a.closers = append(a.closers, conn.Close)
		rpcConn = conn
	}

	newScheduler := func() *scheduler.Scheduler {
		return scheduler.New(store, coord, a.guard,
			scheduler.WithThreshold(c.RefreshThreshold),
			scheduler.WithLogger(log.With("component", "scheduler")),
			scheduler.WithMetrics(m),
		)
	}

	a.authService = services.NewAuthService(authAPI, store, coord, a.guard, newScheduler, log.With("component", "auth"))
	a.resourceService = services.NewResourceService(api, rpcConn)

	return a, nil
}

// Run restores a persisted session if possible and then runs the REPL until
// the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if a.authService.Restore(ctx) {
		a.log.Info(ctx, "restored saved session")
	}

	go a.watchResume(ctx)

	a.printf("tokenkeeper (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close stops background work and releases connections. Safe to call twice.
func (a *App) Close() error {
	var errs []error
	if a.authService != nil {
		errs = append(errs, a.authService.Close(context.Background()))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.guard != nil && a.guard.IsSessionUsable(context.Background())
}

func (a *App) getStatus() string {
	if a.nav == nil {
		return ""
	}
	return a.nav.Current()
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
