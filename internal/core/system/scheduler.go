package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	"go.uber.org/zap"
)

var (
	ErrUnknownPhase   = errors.New("system: unknown phase")
	ErrPhaseCycle     = errors.New("system: phase dependency cycle")
	ErrInvalidSystem  = errors.New("system: invalid system")
	ErrTickInProgress = errors.New("system: tick already in progress")
)

// Stats counts scheduler work since creation.
type Stats struct {
	Ticks      uint64
	SystemRuns uint64
}

// Scheduler executes systems in phase order each tick.
type Scheduler struct {
	world  *ecs.World
	bus    *event.Bus
	log    *zap.Logger
	phases []*phaseNode
	byName map[string]Phase

	orderDirty bool
	cached     []Phase
	once       []bool

	ticking bool
	stats   Stats
	tc      TickContext
}

func NewScheduler(world *ecs.World, bus *event.Bus, log *zap.Logger) *Scheduler {
	s := &Scheduler{
		world:      world,
		bus:        bus,
		log:        log,
		byName:     make(map[string]Phase, 16),
		orderDirty: true,
	}
	s.phases = append(s.phases,
		&phaseNode{name: "OnStart", anchor: true},
		&phaseNode{name: "TickStart", anchor: true},
	)
	s.byName["OnStart"] = OnStart
	s.byName["TickStart"] = TickStart
	return s
}

func (s *Scheduler) World() *ecs.World { return s.world }
func (s *Scheduler) Bus() *event.Bus   { return s.bus }

func (s *Scheduler) valid(p Phase) bool { return p >= 0 && int(p) < len(s.phases) }

// NewPhase creates a phase that runs strictly after dependsOn.
func (s *Scheduler) NewPhase(name string, dependsOn Phase) (Phase, error) {
	if !s.valid(dependsOn) {
		return 0, fmt.Errorf("%w: %q depends on %d", ErrUnknownPhase, name, dependsOn)
	}
	if _, dup := s.byName[name]; dup {
		return 0, fmt.Errorf("system: duplicate phase %q", name)
	}
	p := Phase(len(s.phases))
	s.phases = append(s.phases, &phaseNode{name: name, dependsOn: dependsOn})
	s.byName[name] = p
	s.orderDirty = true
	return p, nil
}

// DependOn re-points p at a new predecessor. A cycle introduced this way is
// reported by the next Tick.
func (s *Scheduler) DependOn(p, dependsOn Phase) error {
	if !s.valid(p) || !s.valid(dependsOn) || s.phases[p].anchor {
		return fmt.Errorf("%w: %d -> %d", ErrUnknownPhase, p, dependsOn)
	}
	s.phases[p].dependsOn = dependsOn
	s.orderDirty = true
	return nil
}

// PhaseByName resolves a phase name.
func (s *Scheduler) PhaseByName(name string) (Phase, bool) {
	p, ok := s.byName[name]
	return p, ok
}

func (s *Scheduler) PhaseName(p Phase) string {
	if !s.valid(p) {
		return ""
	}
	return s.phases[p].name
}

// PhaseState reports p's progress within the current (or last) tick.
func (s *Scheduler) PhaseState(p Phase) PhaseState {
	if !s.valid(p) {
		return PhasePending
	}
	return s.phases[p].state
}

// Order returns the execution order of all phases.
func (s *Scheduler) Order() ([]Phase, error) {
	out, err := s.order()
	if err != nil {
		return nil, err
	}
	return append([]Phase(nil), out...), nil
}

// AddSystem registers a system. Within a phase systems run in registration order.
func (s *Scheduler) AddSystem(desc SystemDesc) error {
	if !s.valid(desc.Phase) {
		return fmt.Errorf("%w: system %q phase %d", ErrUnknownPhase, desc.Name, desc.Phase)
	}
	if desc.System == nil || desc.Name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSystem, desc.Name)
	}
	e := &systemEntry{
		name: desc.Name,
		sys:  desc.System,
		log:  s.log.With(zap.String("system", desc.Name)),
	}
	if desc.Query != nil {
		q, err := s.world.Query(*desc.Query)
		if err != nil {
			return fmt.Errorf("system %q query: %w", desc.Name, err)
		}
		e.query = q
	}
	node := s.phases[desc.Phase]
	node.systems = append(node.systems, e)
	s.log.Debug("system registered",
		zap.String("system", desc.Name),
		zap.String("phase", node.name),
	)
	return nil
}

// Tick runs one scheduler tick: every phase in dependency order, every system
// of a phase in registration order. Phases under OnStart only run on the first
// tick. Calling Tick from inside a system returns ErrTickInProgress.
func (s *Scheduler) Tick(dt time.Duration) error {
	if s.ticking {
		return ErrTickInProgress
	}
	order, err := s.order()
	if err != nil {
		return err
	}
	s.ticking = true
	defer func() { s.ticking = false }()

	for _, n := range s.phases {
		n.state = PhasePending
	}
	first := s.stats.Ticks == 0
	tc := &s.tc
	*tc = TickContext{World: s.world, Bus: s.bus, Delta: dt, Tick: s.stats.Ticks}

	for _, p := range order {
		n := s.phases[p]
		if s.once[p] && !first {
			n.state = PhaseDone
			continue
		}
		n.state = PhaseRunning
		for _, e := range n.systems {
			tc.Query = e.query
			tc.Log = e.log
			e.sys.Update(tc)
			s.stats.SystemRuns++
		}
		n.state = PhaseDone
	}
	s.stats.Ticks++
	if ce := s.log.Check(zap.DebugLevel, "tick"); ce != nil {
		ce.Write(zap.Uint64("tick", tc.Tick), zap.Duration("dt", dt))
	}
	return nil
}

// Ticking reports whether a tick is running.
func (s *Scheduler) Ticking() bool { return s.ticking }

func (s *Scheduler) Stats() Stats { return s.stats }
