package manager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// fakeHandle counts Close calls.
type fakeHandle struct {
	id     int
	closed atomic.Int32
}

func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

// countingLoader returns a LoadFunc that blocks on gate (when non-nil) and
// counts invocations.
func countingLoader(calls *atomic.Int32, gate <-chan struct{}, err error) LoadFunc {
	return func(ctx context.Context) (Handle, error) {
		n := calls.Add(1)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}
		return &fakeHandle{id: int(n)}, nil
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitNames polls until pub has seen n events; publishing trails the load.
func waitNames(t *testing.T, pub *MemoryPublisher, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		names := pub.Names()
		if len(names) >= n || time.Now().After(deadline) {
			return names
		}
		time.Sleep(5 * time.Millisecond)
	}
}
