package transform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tickworld/engine/internal/core/ecs"
)

func spawn(h *Hierarchy, pos mgl32.Vec3, parent ecs.EntityID) ecs.EntityID {
	e := h.World().CreateEntity()
	h.Put(e, New(pos))
	if !parent.IsZero() {
		h.Attach(e, parent)
	}
	return e
}

func assertVec(t *testing.T, want, got mgl32.Vec3, msg ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, msg...)
	}
}

func TestChildWorldPositionComposesParent(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	root := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	child := spawn(h, mgl32.Vec3{2, 0, 0}, root)
	leaf := spawn(h, mgl32.Vec3{0, 5, 0}, child)

	h.Propagate()

	p, ok := h.WorldPosition(child)
	require.True(t, ok)
	assertVec(t, mgl32.Vec3{3, 0, 0}, p)
	p, _ = h.WorldPosition(leaf)
	assertVec(t, mgl32.Vec3{3, 5, 0}, p)

	for _, e := range []ecs.EntityID{root, child, leaf} {
		tr, _ := h.Get(e)
		assert.False(t, tr.Dirty)
		assert.Equal(t, tr.LocalMatrix(), tr.Local)
	}
	rt, _ := h.Get(root)
	assert.Equal(t, rt.Local, rt.World)
}

func TestMovingRootPropagatesToLeaves(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	root := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	child := spawn(h, mgl32.Vec3{2, 0, 0}, root)
	leaf := spawn(h, mgl32.Vec3{0, 0, 1}, child)
	h.Propagate()

	require.True(t, h.SetPosition(root, mgl32.Vec3{10, 0, 0}))
	for _, e := range []ecs.EntityID{root, child, leaf} {
		tr, _ := h.Get(e)
		assert.True(t, tr.Dirty, "mutation marks the whole subtree")
	}
	h.Propagate()
	assert.Equal(t, 3, h.Visits)

	p, _ := h.WorldPosition(leaf)
	assertVec(t, mgl32.Vec3{12, 0, 1}, p)
	for _, e := range []ecs.EntityID{root, child, leaf} {
		tr, _ := h.Get(e)
		assert.False(t, tr.Dirty)
	}
}

func TestCleanTreeIsNotVisited(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	root := spawn(h, mgl32.Vec3{1, 2, 3}, 0)
	child := spawn(h, mgl32.Vec3{2, 0, 0}, root)
	h.Propagate()

	rt, _ := h.Get(root)
	ct, _ := h.Get(child)
	before := [2][2]mgl32.Mat4{{rt.Local, rt.World}, {ct.Local, ct.World}}

	h.Propagate()
	assert.Equal(t, 0, h.Visits)
	rt, _ = h.Get(root)
	ct, _ = h.Get(child)
	assert.Equal(t, before, [2][2]mgl32.Mat4{{rt.Local, rt.World}, {ct.Local, ct.World}})
}

func TestDirtyChildUnderCleanRoot(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	root := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	a := spawn(h, mgl32.Vec3{1, 0, 0}, root)
	b := spawn(h, mgl32.Vec3{0, 1, 0}, root)
	spawn(h, mgl32.Vec3{}, 0) // unrelated tree
	h.Propagate()

	require.True(t, h.SetPosition(b, mgl32.Vec3{0, 2, 0}))
	h.Propagate()

	p, _ := h.WorldPosition(b)
	assertVec(t, mgl32.Vec3{1, 2, 0}, p)
	p, _ = h.WorldPosition(a)
	assertVec(t, mgl32.Vec3{2, 0, 0}, p)
	assert.Equal(t, 3, h.Visits, "root, b and its clean sibling; the other tree is skipped")
}

func TestDetachMakesChildARoot(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	root := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	child := spawn(h, mgl32.Vec3{2, 0, 0}, root)
	h.Propagate()

	w.RemoveRelation(child, ecs.ChildOf, root)
	assert.Empty(t, collect(w, root))
	_, ok := w.Parent(child, ecs.ChildOf)
	assert.False(t, ok)

	h.Propagate()
	ct, _ := h.Get(child)
	assert.Equal(t, ct.Local, ct.World)
	assertVec(t, mgl32.Vec3{2, 0, 0}, ct.WorldPosition())
}

func TestDestroyedParentLeavesRootChild(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	root := spawn(h, mgl32.Vec3{5, 0, 0}, 0)
	child := spawn(h, mgl32.Vec3{1, 0, 0}, root)
	h.Propagate()

	w.DestroyEntity(root)
	require.NotPanics(t, h.Propagate)
	p, _ := h.WorldPosition(child)
	assertVec(t, mgl32.Vec3{1, 0, 0}, p)
}

func TestGroupEntityWithoutTransformPassesThrough(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	root := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	group := w.CreateEntity()
	w.AddRelation(group, ecs.ChildOf, root)
	leaf := spawn(h, mgl32.Vec3{0, 1, 0}, group)

	orphanGroup := w.CreateEntity()
	loose := spawn(h, mgl32.Vec3{0, 0, 7}, orphanGroup)

	h.Propagate()
	p, _ := h.WorldPosition(leaf)
	assertVec(t, mgl32.Vec3{1, 1, 0}, p)
	p, _ = h.WorldPosition(loose)
	assertVec(t, mgl32.Vec3{0, 0, 7}, p, "a transform without transformed ancestors is a root")
}

func TestWorldAttachIsPickedUp(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	parent := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	child := spawn(h, mgl32.Vec3{2, 0, 0}, 0)
	h.Propagate()

	w.AddRelation(child, ecs.ChildOf, parent)
	h.Propagate()
	h.Propagate()

	p, _ := h.WorldPosition(child)
	assertVec(t, mgl32.Vec3{3, 0, 0}, p)
	ct, _ := h.Get(child)
	assert.False(t, ct.Dirty)
}

func TestReparentUnderCleanRootLeavesNothingStale(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	a := spawn(h, mgl32.Vec3{1, 0, 0}, 0)
	b := spawn(h, mgl32.Vec3{0, 1, 0}, a)
	c := spawn(h, mgl32.Vec3{0, 0, 1}, b)
	x := spawn(h, mgl32.Vec3{10, 0, 0}, 0)
	h.Propagate()

	require.True(t, h.SetPosition(c, mgl32.Vec3{0, 0, 2}))
	w.AddRelation(b, ecs.ChildOf, x)
	h.Propagate()

	for _, e := range []ecs.EntityID{a, b, c, x} {
		tr, _ := h.Get(e)
		assert.False(t, tr.Dirty, "%s", e)
		assert.False(t, tr.pending, "%s", e)
	}
	p, _ := h.WorldPosition(c)
	assertVec(t, mgl32.Vec3{10, 1, 2}, p)

	require.True(t, h.SetPosition(c, mgl32.Vec3{0, 0, 3}))
	h.Propagate()
	ct, _ := h.Get(c)
	assert.False(t, ct.Dirty)
	assertVec(t, mgl32.Vec3{10, 1, 3}, ct.WorldPosition())
	assert.Equal(t, 3, h.Visits, "x, b and c; a is skipped")
}

func TestRootsSkipParentedTransforms(t *testing.T) {
	w := ecs.NewWorld()
	h := NewHierarchy(w)
	root := spawn(h, mgl32.Vec3{}, 0)
	mid := spawn(h, mgl32.Vec3{}, root)
	spawn(h, mgl32.Vec3{}, mid)
	group := w.CreateEntity()
	loose := spawn(h, mgl32.Vec3{0, 0, 7}, group)
	under := spawn(h, mgl32.Vec3{0, 0, 1}, loose)
	h.Propagate()

	assert.Equal(t, 1, h.roots.Count())
	assert.Equal(t, map[ecs.EntityID]struct{}{loose: {}}, h.loose)
	p, _ := h.WorldPosition(under)
	assertVec(t, mgl32.Vec3{0, 0, 8}, p)

	// The group gains a Transform: loose is covered now.
	h.Put(group, New(mgl32.Vec3{1, 0, 0}))
	h.Propagate()
	assert.Empty(t, h.loose)
	assert.Equal(t, 2, h.roots.Count())
	p, _ = h.WorldPosition(under)
	assertVec(t, mgl32.Vec3{1, 0, 8}, p)

	// And loses it again.
	ecs.Remove(w, group, h.C)
	h.Propagate()
	assert.Equal(t, map[ecs.EntityID]struct{}{loose: {}}, h.loose)
	p, _ = h.WorldPosition(under)
	assertVec(t, mgl32.Vec3{0, 0, 8}, p)

	w.DestroyEntity(loose)
	h.Propagate()
	assert.Empty(t, h.loose)
}

func TestRotationAndScaleOrder(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	root := h.World().CreateEntity()
	tr := New(mgl32.Vec3{0, 0, 0})
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	tr.Scale = mgl32.Vec3{2, 2, 2}
	h.Put(root, tr)
	child := spawn(h, mgl32.Vec3{1, 0, 0}, root)
	h.Propagate()

	// Scaled to (2,0,0) then rotated a quarter turn about Z.
	p, _ := h.WorldPosition(child)
	assertVec(t, mgl32.Vec3{0, 2, 0}, p)
}

func TestMutatorsOnMissingTransform(t *testing.T) {
	h := NewHierarchy(ecs.NewWorld())
	e := h.World().CreateEntity()
	assert.False(t, h.SetPosition(e, mgl32.Vec3{}))
	assert.False(t, h.SetScale(e, mgl32.Vec3{}))
	assert.False(t, h.SetRotation(e, mgl32.QuatIdent()))
	assert.False(t, h.Translate(e, mgl32.Vec3{}))
	_, ok := h.WorldPosition(e)
	assert.False(t, ok)
}

func collect(w *ecs.World, parent ecs.EntityID) []ecs.EntityID {
	var out []ecs.EntityID
	for c := range w.Children(parent, ecs.ChildOf) {
		out = append(out, c)
	}
	return out
}
