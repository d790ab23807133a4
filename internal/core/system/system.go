package system

import (
	"time"

	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	"go.uber.org/zap"
)

// TickContext is handed to a system each time it runs.
type TickContext struct {
	World *ecs.World
	Bus   *event.Bus
	// Query is the system's compiled query, nil for systems without one.
	Query *ecs.Query
	Delta time.Duration
	Tick  uint64
	Log   *zap.Logger
}

// Seconds returns the tick delta in seconds.
func (tc *TickContext) Seconds() float32 { return float32(tc.Delta.Seconds()) }

// System is the interface every ECS system implements. Systems guard their own
// preconditions (missing singletons, empty queries) and return quietly; the
// scheduler does not recover panics.
type System interface {
	Update(tc *TickContext)
}

// SystemFunc adapts a function to System.
type SystemFunc func(tc *TickContext)

func (f SystemFunc) Update(tc *TickContext) { f(tc) }

// SystemDesc binds a system to exactly one phase and optionally a query.
type SystemDesc struct {
	Name   string
	Phase  Phase
	Query  *ecs.QueryDesc
	System System
}

type systemEntry struct {
	name  string
	query *ecs.Query
	sys   System
	log   *zap.Logger
}
