// Package refresh funnels every token renewal through one single-flight gate.
// Concurrent callers that need a fresh token share one round trip and all
// observe the same outcome.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/authapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/metrics"
)

const episodeKey = "renew"

// Coordinator owns the refresh episode. There should be one per process.
type Coordinator struct {
	store   *token.Store
	renewer authapi.Renewer
	log     logging.Logger
	metrics *metrics.Metrics

	sf       singleflight.Group
	inFlight atomic.Bool
	joins    atomic.Int64
}

type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func New(store *token.Store, renewer authapi.Renewer, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, renewer: renewer, log: logging.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// InFlight reports whether a renewal round trip is running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Refresh returns a renewed token. If an episode is already running the
// caller joins it instead of starting another. With no stored token it fails
// with common.ErrTokenAbsent without touching the network. On failure the
// store is left as it was.
//
// The round trip itself is detached from ctx: cancelling ctx only stops this
// caller from waiting.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	if c.inFlight.Load() {
		c.joins.Add(1)
		c.metrics.RecordRefreshJoined()
	}

	episodeCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(episodeKey, func() (any, error) {
		return c.episode(episodeCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) episode(ctx context.Context) (string, error) {
	current, ok := c.store.Read(ctx)
	if !ok || !token.IsPlausible(current) {
		return "", common.ErrTokenAbsent
	}

	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	c.metrics.RecordRefreshStarted()
	c.log.Debug(ctx, "token renewal started")
	start := time.Now()

	sess, err := c.renewer.Renew(ctx, current)
	if err == nil && !c.store.WriteSession(ctx, sess) {
		err = fmt.Errorf("%w: renewed token not accepted by store", common.ErrRenewalMalformed)
	}

	took := time.Since(start)
	c.metrics.RecordRefreshResult(err, took)
	if err != nil {
		c.log.Warn(ctx, "token renewal failed", "err", err, "took", took)
		return "", err
	}

	c.log.Info(ctx, "token renewed", "took", took)
	return strings.TrimSpace(sess.Token), nil
}
