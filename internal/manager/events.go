package manager

// Lifecycle event names. One load produces load_start followed by exactly one
// of load_ready or load_failed.
const (
	EventLoadStart  = "load_start"
	EventLoadReady  = "load_ready"
	EventLoadFailed = "load_failed"
)

// Event is a model lifecycle event with optional key/value fields.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives lifecycle events. Publish is called from the load
// goroutine and must not block.
type EventPublisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
