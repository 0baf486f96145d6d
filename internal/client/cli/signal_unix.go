//go:build !windows

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchResume treats SIGCONT (the process was resumed after a stop) as the
// client becoming visible again.
func (a *App) watchResume(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT)
	defer signal.Stop(ch)

	for {
		select {
		case <-ch:
			a.log.Debug(ctx, "resumed")
			a.authService.Resume(ctx)
		case <-ctx.Done():
			return
		}
	}
}
