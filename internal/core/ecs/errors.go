package ecs

import "errors"

// Store invariant violations. These are raised as panics wrapping the sentinel:
// once the store is inconsistent there is nothing a caller could recover.
var (
	ErrStaleEntity      = errors.New("ecs: stale or destroyed entity")
	ErrTypeMismatch     = errors.New("ecs: component type mismatch")
	ErrUnregistered     = errors.New("ecs: unregistered component")
	ErrRelationCycle    = errors.New("ecs: relation cycle")
	ErrDuplicateName    = errors.New("ecs: component name already registered")
	ErrUnknownComponent = errors.New("ecs: unknown component in query")
)
