//go:build windows

package cli

import "context"

// watchResume is a no-op: Windows has no SIGCONT. Use the resume command.
func (a *App) watchResume(ctx context.Context) {
	<-ctx.Done()
}
