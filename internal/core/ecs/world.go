package ecs

import (
	"fmt"
	"reflect"
)

type record struct {
	arch *archetype
	row  int
}

// World is the top-level ECS container. It owns the entity pool, the archetype
// tables, relationship edges and singleton slots.
//
// Structural changes requested while a query is being iterated (adding a new
// component type, removing a component, destroying an entity) are queued and
// applied once the outermost iteration ends. Overwriting a component the
// entity already has is always applied in place.
//
// Pointers returned by Get stay valid until the next structural change that
// touches the entity's archetype.
type World struct {
	pool       *EntityPool
	records    []record
	components []*componentInfo
	byName     map[string]ComponentID
	archetypes map[uint64][]*archetype
	archList   []*archetype
	empty      *archetype
	relations  map[RelationKind]*relationIndex
	singletons map[reflect.Type]any
	relLogs    map[RelationKind]*changeLog
	compLogs   map[ComponentID]*changeLog

	iterating int
	deferred  []func()
}

func NewWorld() *World {
	w := &World{
		pool:       NewEntityPool(),
		records:    make([]record, 1, 1024),
		components: make([]*componentInfo, 1, 32),
		byName:     make(map[string]ComponentID, 32),
		archetypes: make(map[uint64][]*archetype, 32),
		relations:  make(map[RelationKind]*relationIndex, 2),
		singletons: make(map[reflect.Type]any, 16),
		relLogs:    make(map[RelationKind]*changeLog, 1),
		compLogs:   make(map[ComponentID]*changeLog, 1),
	}
	w.empty = w.archetypeFor([]ComponentID{})
	return w
}

func (w *World) Pool() *EntityPool { return w.pool }

// CreateEntity allocates a fresh id with no components.
func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	for len(w.records) < w.pool.capacity() {
		w.records = append(w.records, record{})
	}
	w.empty.entities = append(w.empty.entities, id)
	w.records[id.Index()] = record{arch: w.empty, row: len(w.empty.entities) - 1}
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Count returns the number of live entities.
func (w *World) Count() int { return w.pool.Len() }

func (w *World) mustAlive(id EntityID) {
	if !w.pool.Alive(id) {
		panic(fmt.Errorf("%w: %s", ErrStaleEntity, id))
	}
}

// Iterating reports whether a query iteration is in progress.
func (w *World) Iterating() bool { return w.iterating > 0 }

func (w *World) beginIter() { w.iterating++ }

func (w *World) endIter() {
	w.iterating--
	if w.iterating == 0 {
		w.flush()
	}
}

// deferOp queues op when iterating and reports whether it did.
func (w *World) deferOp(op func()) bool {
	if w.iterating == 0 {
		return false
	}
	w.deferred = append(w.deferred, op)
	return true
}

func (w *World) flush() {
	for len(w.deferred) > 0 {
		ops := w.deferred
		w.deferred = nil
		for _, op := range ops {
			op()
		}
	}
}

// DestroyEntity removes all of e's components and every relationship edge
// pointing to or from it. Children of e are detached, not destroyed.
// Destroying a stale id panics.
func (w *World) DestroyEntity(e EntityID) {
	w.mustAlive(e)
	if w.deferOp(func() {
		if w.Alive(e) {
			w.destroy(e)
		}
	}) {
		return
	}
	w.destroy(e)
}

func (w *World) destroy(e EntityID) {
	rec := w.records[e.Index()]
	w.noteLayout(e, rec.arch, nil)
	if moved, ok := rec.arch.removeRow(rec.row); ok {
		w.records[moved.Index()].row = rec.row
	}
	w.records[e.Index()] = record{}
	for kind, idx := range w.relations {
		if _, had := idx.parent[e]; had {
			w.noteRelation(kind, e)
		}
		for _, c := range idx.forget(e) {
			w.noteRelation(kind, c)
		}
	}
	w.pool.Destroy(e)
}

// Set attaches or overwrites component c on e.
func Set[T any](w *World, e EntityID, c Component[T], v T) {
	w.mustAlive(e)
	w.mustInfo(c.id, reflect.TypeFor[T]())
	rec := w.records[e.Index()]
	if col, ok := rec.arch.column(c.id); ok {
		col.(*typedColumn[T]).data[rec.row] = v
		return
	}
	if w.deferOp(func() {
		if w.Alive(e) {
			Set(w, e, c, v)
		}
	}) {
		return
	}
	w.moveEntity(e, w.archetypeWith(rec.arch, c.id))
	rec = w.records[e.Index()]
	col, _ := rec.arch.column(c.id)
	col.(*typedColumn[T]).data[rec.row] = v
}

// Get returns e's component c, or false when e is stale or lacks it.
func Get[T any](w *World, e EntityID, c Component[T]) (*T, bool) {
	if !w.pool.Alive(e) {
		return nil, false
	}
	rec := w.records[e.Index()]
	col, ok := rec.arch.column(c.id)
	if !ok {
		return nil, false
	}
	return &col.(*typedColumn[T]).data[rec.row], true
}

// Has reports whether e currently carries component id.
func (w *World) Has(e EntityID, id ComponentID) bool {
	if !w.pool.Alive(e) {
		return false
	}
	return w.records[e.Index()].arch.has(id)
}

// Remove detaches component c from e. Removing an absent component is a no-op.
func Remove[T any](w *World, e EntityID, c Component[T]) {
	w.RemoveID(e, c.id)
}

// RemoveID is the untyped form of Remove.
func (w *World) RemoveID(e EntityID, id ComponentID) {
	w.mustAlive(e)
	w.mustInfo(id, nil)
	if w.deferOp(func() {
		if w.Alive(e) {
			w.RemoveID(e, id)
		}
	}) {
		return
	}
	rec := w.records[e.Index()]
	if !rec.arch.has(id) {
		return
	}
	w.moveEntity(e, w.archetypeWithout(rec.arch, id))
}

// SetAny is the by-id form of Set used by binding layers. v must have exactly
// the registered Go type.
func (w *World) SetAny(e EntityID, id ComponentID, v any) {
	info := w.mustInfo(id, reflect.TypeOf(v))
	info.setAny(w, e, v)
}

// GetAny returns a pointer to e's component id boxed in an interface.
func (w *World) GetAny(e EntityID, id ComponentID) (any, bool) {
	if !w.pool.Alive(e) {
		return nil, false
	}
	rec := w.records[e.Index()]
	col, ok := rec.arch.column(id)
	if !ok {
		return nil, false
	}
	return col.ptr(rec.row), true
}

// Components lists the component ids attached to e, sorted.
func (w *World) Components(e EntityID) []ComponentID {
	if !w.pool.Alive(e) {
		return nil
	}
	ids := w.records[e.Index()].arch.ids
	out := make([]ComponentID, len(ids))
	copy(out, ids)
	return out
}

// Archetypes returns the number of distinct component layouts created so far.
func (w *World) Archetypes() int { return len(w.archList) }
