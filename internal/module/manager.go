// Package module registers feature bundles into the shared world and
// scheduler and runs the cooperative shutdown handshake between them.
package module

import (
	"errors"
	"fmt"

	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	"github.com/tickworld/engine/internal/core/system"
	"go.uber.org/zap"
)

var (
	ErrDuplicateModule = errors.New("module: duplicate module")
	ErrInvalidModule   = errors.New("module: invalid module")
)

// Module is an independently registered bundle of components, systems and
// observers.
type Module interface {
	Name() string
	Init(h *Host) error
}

type entry struct {
	mod    Module
	entity ecs.EntityID
}

// Manager owns module registration and the shutdown state machine.
type Manager struct {
	world *ecs.World
	bus   *event.Bus
	sched *system.Scheduler
	pipe  *system.Pipeline
	log   *zap.Logger

	records ecs.Component[Record]
	modules []entry
	byName  map[string]ecs.EntityID
}

// NewManager registers the Record component, the Lifecycle singleton and
// the cleanup gate system on pipe.Cleanup.
func NewManager(sched *system.Scheduler, pipe *system.Pipeline, log *zap.Logger) (*Manager, error) {
	w := sched.World()
	m := &Manager{
		world:   w,
		bus:     sched.Bus(),
		sched:   sched,
		pipe:    pipe,
		log:     log,
		records: ecs.Register[Record](w, "Record"),
		byName:  make(map[string]ecs.EntityID, 8),
	}
	ecs.SetSingleton(w, Lifecycle{Stage: Running})

	q := ecs.QueryDesc{Terms: []ecs.Term{{Component: m.records.ID()}}}
	if err := sched.AddSystem(system.SystemDesc{
		Name:   "module.CleanupGate",
		Phase:  pipe.Cleanup,
		Query:  &q,
		System: system.SystemFunc(m.gate),
	}); err != nil {
		return nil, fmt.Errorf("cleanup gate: %w", err)
	}
	return m, nil
}

func (m *Manager) World() *ecs.World            { return m.world }
func (m *Manager) Bus() *event.Bus              { return m.bus }
func (m *Manager) Scheduler() *system.Scheduler { return m.sched }
func (m *Manager) Pipeline() *system.Pipeline   { return m.pipe }

// Register creates mod's entity and record and runs its Init. An Init
// error aborts startup.
func (m *Manager) Register(mod Module) error {
	if mod == nil || mod.Name() == "" {
		return ErrInvalidModule
	}
	name := mod.Name()
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
	}
	e := m.world.CreateEntity()
	ecs.Set(m.world, e, m.records, Record{Name: name})
	m.byName[name] = e
	m.modules = append(m.modules, entry{mod: mod, entity: e})

	h := &Host{
		mgr:    m,
		name:   name,
		Entity: e,
		Log:    m.log.Named(name),
	}
	if err := mod.Init(h); err != nil {
		return fmt.Errorf("init module %s: %w", name, err)
	}
	m.log.Info("module registered", zap.String("module", name), zap.Stringer("entity", e))
	return nil
}

// Entity returns the entity standing for the named module.
func (m *Manager) Entity(name string) (ecs.EntityID, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// Modules lists registered module names in registration order.
func (m *Manager) Modules() []string {
	out := make([]string, len(m.modules))
	for i, en := range m.modules {
		out[i] = en.mod.Name()
	}
	return out
}

// Pending lists modules that have not reported cleanup.
func (m *Manager) Pending() []string {
	var out []string
	for _, en := range m.modules {
		if r, ok := ecs.Get(m.world, en.entity, m.records); ok && !r.CleanupDone {
			out = append(out, r.Name)
		}
	}
	return out
}

// Stage returns the shutdown stage, Running when the Lifecycle singleton
// is absent.
func (m *Manager) Stage() Stage {
	if lc, ok := ecs.Singleton[Lifecycle](m.world); ok {
		return lc.Stage
	}
	return Running
}

// ShouldQuit reports whether the close stage has run.
func (m *Manager) ShouldQuit() bool {
	lc, ok := ecs.Singleton[Lifecycle](m.world)
	return ok && lc.ShouldQuit
}

// RequestShutdown starts the handshake: Shutdown then Cleanup are emitted
// now, the rest of the chain waits for the gate. Repeated requests are
// ignored.
func (m *Manager) RequestShutdown() {
	lc, ok := ecs.Singleton[Lifecycle](m.world)
	if !ok || lc.Stage != Running {
		return
	}
	lc.Stage = CleanupRequested
	m.log.Info("shutdown requested", zap.Int("modules", len(m.modules)))
	m.bus.Emit(Shutdown, 0, nil)
	m.bus.Emit(Cleanup, 0, nil)
}

// gate runs every tick in the Cleanup phase. Once every record reports
// cleanup it arms the lifecycle and walks the remaining stages exactly once.
func (m *Manager) gate(tc *system.TickContext) {
	lc, ok := ecs.Singleton[Lifecycle](tc.World)
	if !ok || lc.Stage != CleanupRequested || lc.Armed {
		return
	}
	total, done := 0, 0
	for b := range tc.Query.Iter() {
		for _, r := range ecs.Field(b, m.records) {
			total++
			if r.CleanupDone {
				done++
			}
		}
	}
	if done != total {
		return
	}
	lc.Armed = true
	lc.Stage = CleanupDone
	tc.Log.Info("all modules cleaned up", zap.Int("modules", total))
	m.bus.Emit(CleanupGraphics, 0, nil)

	lc.Stage = Closed
	m.bus.Emit(Close, 0, nil)
	lc.ShouldQuit = true
}
