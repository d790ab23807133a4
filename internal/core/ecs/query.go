package ecs

import (
	"fmt"
	"iter"
)

// Term is one requirement of a query. With Up unset the component must be on
// the matched entity itself; with Up set it must be on an ancestor reached
// through that relation (the nearest one wins).
type Term struct {
	Component ComponentID
	Up        RelationKind
	Optional  bool
}

// QueryDesc describes a query. Without, when set, excludes entities that have
// a parent through that relation.
type QueryDesc struct {
	Terms   []Term
	Without RelationKind
}

// Query is a compiled, reusable QueryDesc bound to one World.
type Query struct {
	w        *World
	desc     QueryDesc
	required []ComponentID
	up       []int
}

// Query compiles desc. Terms naming unregistered components are a
// configuration error.
func (w *World) Query(desc QueryDesc) (*Query, error) {
	q := &Query{w: w, desc: desc}
	for i, t := range desc.Terms {
		if w.info(t.Component) == nil {
			return nil, fmt.Errorf("%w: term %d (id %d)", ErrUnknownComponent, i, t.Component)
		}
		switch {
		case t.Up != NoRelation:
			q.up = append(q.up, i)
		case !t.Optional:
			q.required = append(q.required, t.Component)
		}
	}
	return q, nil
}

// MustQuery is Query for descriptors built from handles known to be registered.
func (w *World) MustQuery(desc QueryDesc) *Query {
	q, err := w.Query(desc)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Query) World() *World { return q.w }

func (q *Query) matchesArchetype(a *archetype) bool {
	for _, id := range q.required {
		if !a.has(id) {
			return false
		}
	}
	return true
}

// ancestorWith walks e's ancestors through kind and returns the first one
// carrying id.
func (w *World) ancestorWith(e EntityID, kind RelationKind, id ComponentID) (any, bool) {
	idx, ok := w.relations[kind]
	if !ok {
		return nil, false
	}
	seen := 0
	for p, ok := idx.parent[e]; ok; p, ok = idx.parent[p] {
		if ref, found := w.GetAny(p, id); found {
			return ref, true
		}
		seen++
		if seen > len(idx.parent) {
			panic(fmt.Errorf("%w: ancestor walk from %s", ErrRelationCycle, e))
		}
	}
	return nil, false
}

// matchRow reports whether row of a passes the per-entity terms and, if so,
// records the resolved up-term references into refs.
func (q *Query) matchRow(a *archetype, row int, refs []any) bool {
	e := a.entities[row]
	if q.desc.Without != NoRelation && q.w.HasParent(e, q.desc.Without) {
		return false
	}
	for j, ti := range q.up {
		t := q.desc.Terms[ti]
		ref, ok := q.w.ancestorWith(e, t.Up, t.Component)
		if !ok && !t.Optional {
			return false
		}
		refs[j] = ref
	}
	return true
}

// Iter yields the matching entities as batches. A batch is a contiguous run of
// rows from one archetype, so all entities in it share one component layout.
// The set of archetypes and rows is fixed when iteration starts; structural
// changes made while ranging are deferred until the outermost range ends.
func (q *Query) Iter() iter.Seq[*Batch] {
	return func(yield func(*Batch) bool) {
		w := q.w
		w.beginIter()
		defer w.endIter()

		archs := w.archList[:len(w.archList):len(w.archList)]
		refs := make([]any, len(q.up))
		for _, a := range archs {
			if !q.matchesArchetype(a) {
				continue
			}
			n := len(a.entities)
			var b *Batch
			for row := 0; row < n; row++ {
				if !q.matchRow(a, row, refs) {
					if b != nil {
						if !yield(b) {
							return
						}
						b = nil
					}
					continue
				}
				if b == nil {
					b = &Batch{q: q, arch: a, start: row, up: make([][]any, len(q.up))}
				}
				b.end = row + 1
				for j := range refs {
					b.up[j] = append(b.up[j], refs[j])
				}
			}
			if b != nil && !yield(b) {
				return
			}
		}
	}
}

// Count returns the number of entities the query currently matches.
func (q *Query) Count() int {
	n := 0
	for b := range q.Iter() {
		n += b.Count()
	}
	return n
}

// Entities collects every matching entity id.
func (q *Query) Entities() []EntityID {
	var out []EntityID
	for b := range q.Iter() {
		out = append(out, b.Entities()...)
	}
	return out
}

// Batch is one group of query matches sharing a component layout.
type Batch struct {
	q     *Query
	arch  *archetype
	start int
	end   int
	up    [][]any
}

func (b *Batch) Count() int { return b.end - b.start }

func (b *Batch) World() *World { return b.q.w }

// Entities returns the ids of the batch, index-aligned with Field columns.
func (b *Batch) Entities() []EntityID {
	return b.arch.entities[b.start:b.end]
}

// Has reports whether the batch's layout includes id (useful for optional terms).
func (b *Batch) Has(id ComponentID) bool { return b.arch.has(id) }

// Field returns the column of c for the batch, or nil when the layout lacks c.
// Writes through the slice update the store in place.
func Field[T any](b *Batch, c Component[T]) []T {
	col, ok := b.arch.column(c.id)
	if !ok {
		return nil
	}
	return col.(*typedColumn[T]).data[b.start:b.end]
}

// UpField returns, for the up-traversal term at index term of the query's
// descriptor, the ancestor component of each row (nil for unmatched optional
// terms).
func UpField[T any](b *Batch, term int) []*T {
	j := -1
	for k, ti := range b.q.up {
		if ti == term {
			j = k
			break
		}
	}
	if j < 0 {
		panic(fmt.Errorf("ecs: term %d is not an up term", term))
	}
	out := make([]*T, b.Count())
	for i, ref := range b.up[j] {
		if ref != nil {
			out[i] = ref.(*T)
		}
	}
	return out
}

// Each2 calls fn for every entity matched by q with its A and B components.
func Each2[A, B any](q *Query, ca Component[A], cb Component[B], fn func(EntityID, *A, *B)) {
	for b := range q.Iter() {
		as, bs := Field(b, ca), Field(b, cb)
		if as == nil || bs == nil {
			continue
		}
		for i, e := range b.Entities() {
			fn(e, &as[i], &bs[i])
		}
	}
}

// Each1 calls fn for every entity matched by q with its A component.
func Each1[A any](q *Query, ca Component[A], fn func(EntityID, *A)) {
	for b := range q.Iter() {
		as := Field(b, ca)
		if as == nil {
			continue
		}
		for i, e := range b.Entities() {
			fn(e, &as[i])
		}
	}
}
