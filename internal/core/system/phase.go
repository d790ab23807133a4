package system

import "fmt"

// Phase identifies a scheduling slot created by Scheduler.NewPhase.
type Phase int

// Built-in anchors. Phases depending (transitively) on OnStart run on the first
// tick only; phases depending on TickStart run every tick.
const (
	OnStart Phase = iota
	TickStart
)

// PhaseState is the per-tick progress of a phase.
type PhaseState uint8

const (
	PhasePending PhaseState = iota
	PhaseRunning
	PhaseDone
)

func (s PhaseState) String() string {
	switch s {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type phaseNode struct {
	name      string
	dependsOn Phase
	anchor    bool
	state     PhaseState
	systems   []*systemEntry
}

// order returns the phases in execution order: a depth-first walk of the
// depends-on forest from the anchors, children in creation order. Phases the
// walk cannot reach sit on a depends-on cycle.
func (s *Scheduler) order() ([]Phase, error) {
	if !s.orderDirty {
		return s.cached, nil
	}
	children := make([][]Phase, len(s.phases))
	for i, n := range s.phases {
		if n.anchor {
			continue
		}
		children[n.dependsOn] = append(children[n.dependsOn], Phase(i))
	}

	out := make([]Phase, 0, len(s.phases))
	once := make([]bool, len(s.phases))
	var stack []Phase
	for _, anchor := range []Phase{OnStart, TickStart} {
		stack = append(stack[:0], anchor)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out = append(out, p)
			once[p] = anchor == OnStart
			kids := children[p]
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, kids[i])
			}
		}
	}
	if len(out) != len(s.phases) {
		reached := make([]bool, len(s.phases))
		for _, p := range out {
			reached[p] = true
		}
		for i, r := range reached {
			if !r {
				return nil, fmt.Errorf("%w: phase %q", ErrPhaseCycle, s.phases[i].name)
			}
		}
	}
	s.cached = out
	s.once = once
	s.orderDirty = false
	return out, nil
}
