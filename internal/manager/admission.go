package manager

import (
	"context"
	"time"
)

// Acquire reserves a queue slot and then an in-flight slot for one inference
// call. Returns a release func to be deferred. Waiting longer than MaxWait
// for either slot yields a too-busy error.
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	noop := func() {}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return noop, err
	}

	start := time.Now()
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return noop, ctx.Err()
	case <-timer.C:
		return noop, tooBusyError{modelID: m.modelID}
	}

	// Wait to acquire an in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return noop, err
	}
	timer2 := time.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		queueWait.Observe(time.Since(start).Seconds())
		return func() { <-m.genCh; <-m.queueCh }, nil
	case <-ctx.Done():
		return noop, ctx.Err()
	case <-timer2.C:
		return noop, tooBusyError{modelID: m.modelID}
	}
}
