package event

import (
	"errors"
	"fmt"

	"github.com/tickworld/engine/internal/core/ecs"
	"go.uber.org/zap"
)

var ErrInvalidObserver = errors.New("event: invalid observer")

type observer struct {
	name    string
	filter  Filter
	handler Handler
}

// Bus dispatches events synchronously. Emit calls every matching observer in
// registration order before it returns; observers may Emit again.
type Bus struct {
	world     *ecs.World
	log       *zap.Logger
	observers map[Kind][]*observer
	depth     int
	emitted   uint64
}

func NewBus(world *ecs.World, log *zap.Logger) *Bus {
	return &Bus{
		world:     world,
		log:       log,
		observers: make(map[Kind][]*observer),
	}
}

// Observe registers desc. An observer without kinds or handler is a
// configuration error.
func (b *Bus) Observe(desc ObserverDesc) error {
	if len(desc.Events) == 0 || desc.Handler == nil {
		return fmt.Errorf("%w: %q", ErrInvalidObserver, desc.Name)
	}
	o := &observer{name: desc.Name, filter: desc.Filter, handler: desc.Handler}
	for _, k := range desc.Events {
		b.observers[k] = append(b.observers[k], o)
	}
	return nil
}

// Emit delivers an event to every observer of kind whose filter accepts
// target. Observers registered during dispatch see only later emits.
func (b *Bus) Emit(kind Kind, target ecs.EntityID, payload any) {
	list := b.observers[kind]
	if len(list) == 0 {
		return
	}
	list = list[:len(list):len(list)]

	b.depth++
	b.emitted++
	defer func() { b.depth-- }()

	ev := Event{Kind: kind, Target: target, Payload: payload}
	for _, o := range list {
		if !b.matches(o.filter, target) {
			continue
		}
		if ce := b.log.Check(zap.DebugLevel, "observer"); ce != nil {
			ce.Write(
				zap.String("event", string(kind)),
				zap.String("observer", o.name),
				zap.Stringer("target", target),
				zap.Int("depth", b.depth),
			)
		}
		o.handler(ev)
	}
}

func (b *Bus) matches(f Filter, target ecs.EntityID) bool {
	if f.Entity.IsZero() || f.Entity == target {
		return true
	}
	if f.Rel == ecs.NoRelation {
		return false
	}
	seen := 0
	for p, ok := b.world.Parent(target, f.Rel); ok; p, ok = b.world.Parent(p, f.Rel) {
		if p == f.Entity {
			return true
		}
		if seen++; seen > b.world.Count() {
			return false
		}
	}
	return false
}

// Observers returns the number of observers registered for kind.
func (b *Bus) Observers(kind Kind) int { return len(b.observers[kind]) }

// Emitted returns the number of Emit calls that reached at least one observer list.
func (b *Bus) Emitted() uint64 { return b.emitted }
