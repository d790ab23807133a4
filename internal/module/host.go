package module

import (
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	"github.com/tickworld/engine/internal/core/system"
	"go.uber.org/zap"
)

// Host is what a module sees during Init. The phase table travels with it
// so modules never reach for package-level phase ids.
type Host struct {
	mgr  *Manager
	name string

	// Entity stands for the module. Entities the module owns are its
	// ChildOf children.
	Entity ecs.EntityID
	Log    *zap.Logger
}

func (h *Host) Name() string                 { return h.name }
func (h *Host) World() *ecs.World            { return h.mgr.world }
func (h *Host) Bus() *event.Bus              { return h.mgr.bus }
func (h *Host) Scheduler() *system.Scheduler { return h.mgr.sched }
func (h *Host) Phases() *system.Pipeline     { return h.mgr.pipe }
func (h *Host) Manager() *Manager            { return h.mgr }

// AddSystem registers a system under the module's name.
func (h *Host) AddSystem(name string, phase system.Phase, q *ecs.QueryDesc, s system.System) error {
	return h.mgr.sched.AddSystem(system.SystemDesc{
		Name:   h.name + "." + name,
		Phase:  phase,
		Query:  q,
		System: s,
	})
}

// Observe registers an observer under the module's name.
func (h *Host) Observe(name string, filter event.Filter, handler event.Handler, kinds ...event.Kind) error {
	return h.mgr.bus.Observe(event.ObserverDesc{
		Name:    h.name + "." + name,
		Events:  kinds,
		Filter:  filter,
		Handler: handler,
	})
}

// Owned is the filter matching the module entity and everything it owns.
func (h *Host) Owned() event.Filter {
	return event.Filter{Entity: h.Entity, Rel: ecs.ChildOf}
}

// Own makes e an instance of the module.
func (h *Host) Own(e ecs.EntityID) {
	h.mgr.world.AddRelation(e, ecs.ChildOf, h.Entity)
}

// OnCleanup runs fn when the Cleanup stage starts. fn, or something it
// schedules, must eventually call CleanupDone.
func (h *Host) OnCleanup(fn func()) error {
	return h.Observe("cleanup", event.Filter{}, func(event.Event) { fn() }, Cleanup)
}

// CleanupDone reports the module's cleanup as complete.
func (h *Host) CleanupDone() {
	if r, ok := ecs.Get(h.mgr.world, h.Entity, h.mgr.records); ok && !r.CleanupDone {
		r.CleanupDone = true
		h.Log.Debug("cleanup done")
	}
}

// RequestShutdown starts the shutdown handshake.
func (h *Host) RequestShutdown() { h.mgr.RequestShutdown() }
