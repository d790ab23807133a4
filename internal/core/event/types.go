package event

import "github.com/tickworld/engine/internal/core/ecs"

// Kind names an event. Kinds are plain strings so independent modules can
// agree on one without importing each other.
type Kind string

// Event is what observers receive.
type Event struct {
	Kind    Kind
	Target  ecs.EntityID
	Payload any
}

// Payload extracts a typed payload.
func Payload[T any](ev Event) (T, bool) {
	v, ok := ev.Payload.(T)
	return v, ok
}

// Filter selects the targets an observer reacts to. A zero Entity matches
// every target. Otherwise the target must be Entity itself or, when Rel is
// set, have Entity as an ancestor through Rel.
type Filter struct {
	Entity ecs.EntityID
	Rel    ecs.RelationKind
}

// Handler is an observer callback.
type Handler func(ev Event)

// ObserverDesc registers a handler for one or more kinds.
type ObserverDesc struct {
	Name    string
	Events  []Kind
	Filter  Filter
	Handler Handler
}
