package manager

import "context"

// State represents the lifecycle state of the model handle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Handle is a loaded model. It is immutable once returned by a LoadFunc and
// must be safe for concurrent use by request handlers.
type Handle interface {
	// Close releases resources associated with the model.
	Close() error
}

// LoadFunc constructs the model handle. It is called at most once per Manager.
type LoadFunc func(ctx context.Context) (Handle, error)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State   State
	ModelID string
	Err     string
}
