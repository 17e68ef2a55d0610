package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + variant and optional fields via key/values.
//
// Names: load_start, load_ready, load_error, generate_start, generate_done,
// generate_error.
type Event struct {
	Name    string
	Variant string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans events out to several publishers in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
