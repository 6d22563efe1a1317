package httpapi

import (
	"context"
)

// serverBaseCtx ties handler work to the daemon's lifetime. It stays
// Background until SetBaseContext installs the shutdown context from main.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context handlers join their
// request contexts with, so shutdown cancels in-flight ensure and
// completion work. A nil ctx restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled when either input is done,
// covering both client disconnect and daemon shutdown. Callers must invoke
// the cancel func when the handler returns to release the watcher.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		}
		cancel()
	}()
	return ctx, cancel
}
