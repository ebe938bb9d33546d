package httpapi

import (
	"context"
	"time"
)

// joinContexts returns a context derived from req that is also canceled when
// base is done. The returned cancel func must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// inferContext joins the request with the server base context and applies the
// optional inference timeout.
func inferContext(base, req context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(base, req)
	if timeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}
