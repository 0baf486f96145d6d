// Package pipeline attaches the bearer token to outbound calls and recovers
// from 401s: one refresh through the shared coordinator, one retry, then
// either a graceful failure or session teardown.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
)

// DefaultPublicPaths never carry or require a token.
var DefaultPublicPaths = []string{
	"/login",
	"/signup",
	"/forgot-password",
	"/reset-password",
	"/auth/login",
	"/auth/signup",
	"/auth/forgot-password",
	"/auth/reset-password",
}

// DefaultGracefulPaths are lookups whose auth failure is reported to the
// caller without tearing the session down.
var DefaultGracefulPaths = []string{
	"/equipment-types",
	"/document-types",
	"/training-types",
}

type TokenSource interface {
	Read(ctx context.Context) (string, bool)
}

type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type TerminalHandler interface {
	HandleTerminalFailure(ctx context.Context, reason error)
}

// Policy is shared by the HTTP client and the gRPC interceptor.
type Policy struct {
	Store     TokenSource
	Refresher Refresher
	Terminal  TerminalHandler

	// PublicPaths and GracefulPaths match whole path segments anywhere in
	// the request path or gRPC full method name. Nil means the defaults.
	PublicPaths   []string
	GracefulPaths []string

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

func (p *Policy) log() logging.Logger {
	if p.Logger == nil {
		return logging.Nop()
	}
	return p.Logger
}

func (p *Policy) isPublic(path string) bool {
	list := p.PublicPaths
	if list == nil {
		list = DefaultPublicPaths
	}
	return matchAny(path, list)
}

func (p *Policy) isGraceful(path string) bool {
	list := p.GracefulPaths
	if list == nil {
		list = DefaultGracefulPaths
	}
	return matchAny(path, list)
}

func matchAny(path string, patterns []string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/") + "/"
	for _, p := range patterns {
		p = strings.TrimRight(p, "/")
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if strings.Contains(path, p+"/") {
			return true
		}
	}
	return false
}

// bearer returns the stored token if it is plausible.
func (p *Policy) bearer(ctx context.Context) (string, bool) {
	tok, ok := p.Store.Read(ctx)
	if !ok || !token.IsPlausible(tok) {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

// renewedSince returns the stored token when it differs from sent, the token
// the failed attempt carried: another call already refreshed after this one
// went out, so its 401 needs no renewal of its own.
func (p *Policy) renewedSince(ctx context.Context, sent string) (string, bool) {
	if sent == "" {
		return "", false
	}
	tok, ok := p.bearer(ctx)
	if !ok || tok == sent {
		return "", false
	}
	return tok, true
}

// retryToken gets a token for the single retry, refreshing only when no newer
// token than sent is stored.
func (p *Policy) retryToken(ctx context.Context, path, sent string) (string, error) {
	if tok, ok := p.renewedSince(ctx, sent); ok {
		p.log().Debug(ctx, "token renewed while call was in flight", "path", path)
		return tok, nil
	}
	return p.Refresher.Refresh(ctx)
}

// refuse handles a protected call attempted without a usable token.
func (p *Policy) refuse(ctx context.Context, path string) error {
	p.Metrics.RecordLocalRefusal()
	p.log().Info(ctx, "protected call refused locally", "path", path)
	if p.Terminal != nil {
		p.Terminal.HandleTerminalFailure(ctx, common.ErrNotAuthenticated)
	}
	return fmt.Errorf("%s: %w", path, common.ErrNotAuthenticated)
}

// unauthorized finishes a call whose 401 could not be recovered. Graceful
// paths and soft renewal failures keep the session; everything else ends it.
func (p *Policy) unauthorized(ctx context.Context, path string, cause error) error {
	err := fmt.Errorf("%w: %s: %w", common.ErrRequestUnauthorized, path, cause)

	switch {
	case p.isGraceful(path):
		p.log().Info(ctx, "unauthorized on graceful path", "path", path, "err", cause)
	case common.IsSoftRenewalFailure(cause):
		p.log().Warn(ctx, "refresh failed transiently, keeping session", "path", path, "err", cause)
	default:
		p.log().Warn(ctx, "unauthorized, ending session", "path", path, "attempt", AttemptFrom(ctx), "err", cause)
		if p.Terminal != nil {
			p.Terminal.HandleTerminalFailure(ctx, cause)
		}
	}
	return err
}
