package transform

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/system"
)

// ErrHierarchyLoop is the panic value when a propagation pass revisits more
// nodes than the world holds.
var ErrHierarchyLoop = errors.New("transform: parent chain loops")

type frame struct {
	e      ecs.EntityID
	parent mgl32.Mat4
	// parentID is the nearest transformed ancestor, zero at a root.
	parentID ecs.EntityID
	force    bool
}

// Hierarchy owns the Transform component of one world and propagates dirty
// transforms from the roots down.
type Hierarchy struct {
	w     *ecs.World
	C     ecs.Component[Transform]
	roots *ecs.Query
	// loose holds transforms that have a parent but no transformed ancestor.
	// The roots query does not see them.
	loose map[ecs.EntityID]struct{}

	stack []frame

	// Visits counts nodes processed by the last Propagate call.
	Visits int
	// Passes counts Propagate calls.
	Passes uint64
}

// NewHierarchy registers Transform on w and watches w for parent edge and
// Transform layout changes, so edits made straight on the world are picked
// up by the next pass.
func NewHierarchy(w *ecs.World) *Hierarchy {
	c := ecs.Register[Transform](w, "Transform")
	w.WatchRelation(ecs.ChildOf)
	w.WatchComponent(c.ID())
	return &Hierarchy{
		w: w,
		C: c,
		roots: w.MustQuery(ecs.QueryDesc{
			Terms:   []ecs.Term{{Component: c.ID()}},
			Without: ecs.ChildOf,
		}),
		loose: make(map[ecs.EntityID]struct{}),
		stack: make([]frame, 0, 64),
	}
}

func (h *Hierarchy) World() *ecs.World { return h.w }

// Get returns e's transform.
func (h *Hierarchy) Get(e ecs.EntityID) (*Transform, bool) {
	return ecs.Get(h.w, e, h.C)
}

// Put attaches t to e and marks it dirty.
func (h *Hierarchy) Put(e ecs.EntityID, t Transform) {
	ecs.Set(h.w, e, h.C, t)
	h.MarkDirty(e)
}

func (h *Hierarchy) SetPosition(e ecs.EntityID, p mgl32.Vec3) bool {
	t, ok := h.Get(e)
	if !ok {
		return false
	}
	t.Position = p
	h.MarkDirty(e)
	return true
}

func (h *Hierarchy) SetRotation(e ecs.EntityID, q mgl32.Quat) bool {
	t, ok := h.Get(e)
	if !ok {
		return false
	}
	t.Rotation = q
	h.MarkDirty(e)
	return true
}

func (h *Hierarchy) SetScale(e ecs.EntityID, s mgl32.Vec3) bool {
	t, ok := h.Get(e)
	if !ok {
		return false
	}
	t.Scale = s
	h.MarkDirty(e)
	return true
}

// Translate moves e by d in its parent's space.
func (h *Hierarchy) Translate(e ecs.EntityID, d mgl32.Vec3) bool {
	t, ok := h.Get(e)
	if !ok {
		return false
	}
	return h.SetPosition(e, t.Position.Add(d))
}

// MarkDirty flags e and every transitive child. Every ancestor is flagged as
// having a dirty descendant so the propagator reaches e under a clean root.
func (h *Hierarchy) MarkDirty(e ecs.EntityID) {
	if !h.w.Alive(e) {
		return
	}
	work := []ecs.EntityID{e}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if t, ok := h.Get(n); ok {
			t.Dirty = true
		}
		for c := range h.w.Children(n, ecs.ChildOf) {
			work = append(work, c)
		}
	}
	guard := h.w.Count()
	for p, ok := h.w.Parent(e, ecs.ChildOf); ok; p, ok = h.w.Parent(p, ecs.ChildOf) {
		if t, ok := h.Get(p); ok {
			t.pending = true
		}
		if guard--; guard < 0 {
			panic(fmt.Errorf("%w: above %s", ErrHierarchyLoop, e))
		}
	}
}

// Attach parents child under parent and marks child's subtree dirty.
func (h *Hierarchy) Attach(child, parent ecs.EntityID) {
	h.w.AddRelation(child, ecs.ChildOf, parent)
	h.MarkDirty(child)
}

// Detach removes child's parent edge. The child is a root from the next pass.
func (h *Hierarchy) Detach(child ecs.EntityID) {
	if p, ok := h.w.Parent(child, ecs.ChildOf); ok {
		h.w.RemoveRelation(child, ecs.ChildOf, p)
	}
	h.MarkDirty(child)
}

// WorldPosition returns e's world translation.
func (h *Hierarchy) WorldPosition(e ecs.EntityID) (mgl32.Vec3, bool) {
	t, ok := h.Get(e)
	if !ok {
		return mgl32.Vec3{}, false
	}
	return t.WorldPosition(), true
}

// Update runs Propagate as a scheduler system.
func (h *Hierarchy) Update(*system.TickContext) { h.Propagate() }

// Propagate recomputes every dirty transform. Roots are transforms with no
// transformed ancestor, so a child whose parent is gone is a root. A clean
// root with no dirty descendant is skipped along with its whole subtree.
// Below a dirty node every child is recomputed, as is any node whose
// transformed ancestor changed since its World was built.
func (h *Hierarchy) Propagate() {
	h.Visits = 0
	h.Passes++
	h.sync()
	budget := h.w.Count()
	for b := range h.roots.Iter() {
		ts := ecs.Field(b, h.C)
		for i, e := range b.Entities() {
			h.visitRoot(e, &ts[i], budget)
		}
	}
	for e := range h.loose {
		if t, ok := h.Get(e); ok {
			h.visitRoot(e, t, budget)
		}
	}
}

func (h *Hierarchy) visitRoot(e ecs.EntityID, t *Transform, budget int) {
	if t.parent != 0 {
		// Lost its parent since the last pass.
		t.Dirty = true
	}
	if !t.Dirty && !t.pending {
		return
	}
	h.stack = append(h.stack[:0], frame{e: e})
	h.drain(budget)
}

// sync applies parent edge and Transform layout changes recorded by the world
// since the previous pass.
func (h *Hierarchy) sync() {
	for _, e := range h.w.RelationChanges(ecs.ChildOf) {
		h.refresh(e)
	}
	for _, e := range h.w.ComponentChanges(h.C.ID()) {
		h.refresh(e)
	}
}

func (h *Hierarchy) refresh(e ecs.EntityID) {
	if !h.w.Alive(e) {
		delete(h.loose, e)
		return
	}
	h.MarkDirty(e)
	h.classify(e)
}

// classify updates loose membership for e's subtree.
func (h *Hierarchy) classify(e ecs.EntityID) {
	type item struct {
		e       ecs.EntityID
		covered bool
	}
	work := []item{{e, h.hasTransformedAncestor(e)}}
	budget := h.w.Count()
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		if budget--; budget < 0 {
			panic(fmt.Errorf("%w: below %s", ErrHierarchyLoop, e))
		}
		_, has := h.Get(it.e)
		if has && !it.covered && h.w.HasParent(it.e, ecs.ChildOf) {
			h.loose[it.e] = struct{}{}
		} else {
			delete(h.loose, it.e)
		}
		for c := range h.w.Children(it.e, ecs.ChildOf) {
			work = append(work, item{c, it.covered || has})
		}
	}
}

func (h *Hierarchy) hasTransformedAncestor(e ecs.EntityID) bool {
	guard := h.w.Count()
	for p, ok := h.w.Parent(e, ecs.ChildOf); ok; p, ok = h.w.Parent(p, ecs.ChildOf) {
		if _, t := h.Get(p); t {
			return true
		}
		if guard--; guard < 0 {
			panic(fmt.Errorf("%w: above %s", ErrHierarchyLoop, e))
		}
	}
	return false
}

func (h *Hierarchy) drain(budget int) {
	for len(h.stack) > 0 {
		f := h.stack[len(h.stack)-1]
		h.stack = h.stack[:len(h.stack)-1]

		t, ok := h.Get(f.e)
		if !ok {
			// Not a transform: children hang off the nearest transformed ancestor.
			h.pushChildren(f.e, f.parent, f.parentID, f.force)
			continue
		}
		h.Visits++
		if h.Visits > budget {
			panic(fmt.Errorf("%w: at %s", ErrHierarchyLoop, f.e))
		}
		if f.force || t.parent != f.parentID {
			t.Dirty = true
		}
		switch {
		case t.Dirty:
			t.Local = t.LocalMatrix()
			if f.parentID != 0 {
				t.World = f.parent.Mul4(t.Local)
			} else {
				t.World = t.Local
			}
			t.Dirty = false
			t.pending = false
			t.parent = f.parentID
			h.pushChildren(f.e, t.World, f.e, true)
		case t.pending:
			t.pending = false
			h.pushChildren(f.e, t.World, f.e, false)
		}
	}
}

func (h *Hierarchy) pushChildren(e ecs.EntityID, world mgl32.Mat4, parentID ecs.EntityID, force bool) {
	for c := range h.w.Children(e, ecs.ChildOf) {
		h.stack = append(h.stack, frame{e: c, parent: world, parentID: parentID, force: force})
	}
}
