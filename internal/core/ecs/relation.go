package ecs

import (
	"fmt"
	"iter"
	"slices"
)

// RelationKind names a kind of directed (child, kind, parent) edge.
type RelationKind uint8

const (
	NoRelation RelationKind = iota
	ChildOf
)

func (k RelationKind) String() string {
	switch k {
	case NoRelation:
		return "none"
	case ChildOf:
		return "ChildOf"
	}
	return fmt.Sprintf("relation(%d)", uint8(k))
}

type relationIndex struct {
	parent   map[EntityID]EntityID
	children map[EntityID][]EntityID
}

func newRelationIndex() *relationIndex {
	return &relationIndex{
		parent:   make(map[EntityID]EntityID, 64),
		children: make(map[EntityID][]EntityID, 64),
	}
}

func (r *relationIndex) detach(child EntityID) {
	p, ok := r.parent[child]
	if !ok {
		return
	}
	delete(r.parent, child)
	kids := r.children[p]
	if i := slices.Index(kids, child); i >= 0 {
		kids = slices.Delete(kids, i, i+1)
	}
	if len(kids) == 0 {
		delete(r.children, p)
	} else {
		r.children[p] = kids
	}
}

// forget drops every edge touching e and returns e's former children, which
// are roots afterwards.
func (r *relationIndex) forget(e EntityID) []EntityID {
	r.detach(e)
	kids := r.children[e]
	for _, c := range kids {
		delete(r.parent, c)
	}
	delete(r.children, e)
	return kids
}

func (w *World) relation(kind RelationKind) *relationIndex {
	idx, ok := w.relations[kind]
	if !ok {
		idx = newRelationIndex()
		w.relations[kind] = idx
	}
	return idx
}

// AddRelation makes parent the kind-parent of child, replacing any previous
// parent of that kind. Self edges and edges that would close a cycle panic.
func (w *World) AddRelation(child EntityID, kind RelationKind, parent EntityID) {
	w.mustAlive(child)
	w.mustAlive(parent)
	if kind == NoRelation {
		panic(fmt.Errorf("ecs: AddRelation with %s", kind))
	}
	idx := w.relation(kind)
	for a := parent; ; {
		if a == child {
			panic(fmt.Errorf("%w: %s %s %s", ErrRelationCycle, child, kind, parent))
		}
		next, ok := idx.parent[a]
		if !ok {
			break
		}
		a = next
	}
	idx.detach(child)
	idx.parent[child] = parent
	idx.children[parent] = append(idx.children[parent], child)
	w.noteRelation(kind, child)
}

// RemoveRelation removes the (child, kind, parent) edge if it exists. Neither
// entity is destroyed.
func (w *World) RemoveRelation(child EntityID, kind RelationKind, parent EntityID) {
	idx, ok := w.relations[kind]
	if !ok {
		return
	}
	if p, ok := idx.parent[child]; ok && p == parent {
		idx.detach(child)
		w.noteRelation(kind, child)
	}
}

// Parent returns child's kind-parent.
func (w *World) Parent(child EntityID, kind RelationKind) (EntityID, bool) {
	idx, ok := w.relations[kind]
	if !ok {
		return 0, false
	}
	p, ok := idx.parent[child]
	return p, ok
}

// HasParent reports whether child has any kind-parent.
func (w *World) HasParent(child EntityID, kind RelationKind) bool {
	_, ok := w.Parent(child, kind)
	return ok
}

// Children yields parent's kind-children in the order they were attached.
// The sequence walks a copy taken when it starts, so edges changed while
// ranging over it do not affect the walk.
func (w *World) Children(parent EntityID, kind RelationKind) iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		idx, ok := w.relations[kind]
		if !ok {
			return
		}
		kids := slices.Clone(idx.children[parent])
		for _, c := range kids {
			if !yield(c) {
				return
			}
		}
	}
}

// ChildCount returns the number of kind-children of parent.
func (w *World) ChildCount(parent EntityID, kind RelationKind) int {
	idx, ok := w.relations[kind]
	if !ok {
		return 0
	}
	return len(idx.children[parent])
}
