package ecs

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float32 }
type velocity struct{ X, Y float32 }
type health struct{ HP int }

type testComponents struct {
	pos Component[position]
	vel Component[velocity]
	hp  Component[health]
}

func newTestWorld() (*World, testComponents) {
	w := NewWorld()
	return w, testComponents{
		pos: Register[position](w, "Position"),
		vel: Register[velocity](w, "Velocity"),
		hp:  Register[health](w, "Health"),
	}
}

func TestEntityPoolGenerations(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())
	require.True(t, p.Alive(a))
	require.True(t, p.Destroy(a))
	require.False(t, p.Alive(a))
	require.False(t, p.Destroy(a))

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "index reused from free list")
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.False(t, p.Alive(a))
	assert.Equal(t, 1, p.Len())
}

func TestSetGetOverwrite(t *testing.T) {
	w, c := newTestWorld()
	e := w.CreateEntity()

	_, ok := Get(w, e, c.pos)
	require.False(t, ok)

	Set(w, e, c.pos, position{1, 2})
	p, ok := Get(w, e, c.pos)
	require.True(t, ok)
	assert.Equal(t, position{1, 2}, *p)

	Set(w, e, c.pos, position{3, 4})
	p, _ = Get(w, e, c.pos)
	assert.Equal(t, position{3, 4}, *p)

	p.X = 9
	p, _ = Get(w, e, c.pos)
	assert.Equal(t, float32(9), p.X, "Get returns a reference into the store")
}

func TestMovingBetweenLayoutsKeepsValues(t *testing.T) {
	w, c := newTestWorld()
	a := w.CreateEntity()
	b := w.CreateEntity()
	Set(w, a, c.pos, position{1, 1})
	Set(w, b, c.pos, position{2, 2})
	Set(w, a, c.vel, velocity{5, 5})

	pa, _ := Get(w, a, c.pos)
	pb, _ := Get(w, b, c.pos)
	assert.Equal(t, position{1, 1}, *pa)
	assert.Equal(t, position{2, 2}, *pb)

	Remove(w, a, c.pos)
	assert.False(t, w.Has(a, c.pos.ID()))
	v, ok := Get(w, a, c.vel)
	require.True(t, ok)
	assert.Equal(t, velocity{5, 5}, *v)
	pb, _ = Get(w, b, c.pos)
	assert.Equal(t, position{2, 2}, *pb)
}

func TestDestroyRemovesEverything(t *testing.T) {
	w, c := newTestWorld()
	parent := w.CreateEntity()
	child := w.CreateEntity()
	e := w.CreateEntity()
	Set(w, e, c.pos, position{1, 1})
	w.AddRelation(e, ChildOf, parent)
	w.AddRelation(child, ChildOf, e)

	w.DestroyEntity(e)

	_, ok := Get(w, e, c.pos)
	assert.False(t, ok)
	assert.False(t, w.Alive(e))
	assert.Empty(t, slices.Collect(w.Children(parent, ChildOf)))
	_, ok = w.Parent(child, ChildOf)
	assert.False(t, ok, "child of a destroyed entity becomes a root")
	assert.True(t, w.Alive(child))
}

func TestStaleIDPanics(t *testing.T) {
	w, c := newTestWorld()
	e := w.CreateEntity()
	w.DestroyEntity(e)

	assert.Panics(t, func() { w.DestroyEntity(e) })
	assert.Panics(t, func() { Set(w, e, c.pos, position{}) })
	_, ok := Get(w, e, c.pos)
	assert.False(t, ok, "lookups on stale ids are empty, not fatal")
}

func TestTypeSafety(t *testing.T) {
	w, c := newTestWorld()
	e := w.CreateEntity()

	assert.Panics(t, func() { w.SetAny(e, c.pos.ID(), velocity{}) })
	assert.Panics(t, func() { Set(w, e, Component[position]{}, position{}) })
	assert.Panics(t, func() { Register[velocity](w, "Position") })

	w.SetAny(e, c.pos.ID(), position{7, 8})
	ref, ok := w.GetAny(e, c.pos.ID())
	require.True(t, ok)
	assert.Equal(t, &position{7, 8}, ref)

	again := Register[position](w, "Position")
	assert.Equal(t, c.pos, again)
	id, ok := w.ComponentByName("Velocity")
	require.True(t, ok)
	assert.Equal(t, c.vel.ID(), id)
	assert.Equal(t, "Health", w.ComponentName(c.hp.ID()))
}

func TestSingletons(t *testing.T) {
	w := NewWorld()
	_, ok := Singleton[health](w)
	require.False(t, ok)

	p := SetSingleton(w, health{HP: 3})
	got, ok := Singleton[health](w)
	require.True(t, ok)
	assert.Same(t, p, got)

	SetSingleton(w, health{HP: 4})
	assert.Equal(t, 4, p.HP, "overwrite keeps the slot")

	RemoveSingleton[health](w)
	_, ok = Singleton[health](w)
	assert.False(t, ok)
}

func TestRelations(t *testing.T) {
	w := NewWorld()
	root := w.CreateEntity()
	a := w.CreateEntity()
	b := w.CreateEntity()
	w.AddRelation(a, ChildOf, root)
	w.AddRelation(b, ChildOf, root)

	assert.Equal(t, []EntityID{a, b}, slices.Collect(w.Children(root, ChildOf)))
	p, ok := w.Parent(a, ChildOf)
	require.True(t, ok)
	assert.Equal(t, root, p)

	w.RemoveRelation(a, ChildOf, root)
	assert.Equal(t, []EntityID{b}, slices.Collect(w.Children(root, ChildOf)))
	_, ok = w.Parent(a, ChildOf)
	assert.False(t, ok)
	assert.True(t, w.Alive(a) && w.Alive(root))

	// Reparenting replaces the old edge.
	w.AddRelation(b, ChildOf, a)
	assert.Equal(t, 0, w.ChildCount(root, ChildOf))
	assert.Equal(t, 1, w.ChildCount(a, ChildOf))
}

func TestRelationCyclesPanic(t *testing.T) {
	w := NewWorld()
	a := w.CreateEntity()
	b := w.CreateEntity()
	c := w.CreateEntity()
	w.AddRelation(b, ChildOf, a)
	w.AddRelation(c, ChildOf, b)

	assert.Panics(t, func() { w.AddRelation(a, ChildOf, a) })
	assert.Panics(t, func() { w.AddRelation(a, ChildOf, c) })
}

func TestChildrenSequenceIsSnapshot(t *testing.T) {
	w := NewWorld()
	root := w.CreateEntity()
	kids := []EntityID{w.CreateEntity(), w.CreateEntity(), w.CreateEntity()}
	for _, k := range kids {
		w.AddRelation(k, ChildOf, root)
	}
	var seen []EntityID
	for k := range w.Children(root, ChildOf) {
		w.RemoveRelation(k, ChildOf, root)
		seen = append(seen, k)
	}
	assert.Equal(t, kids, seen)
	assert.Equal(t, 0, w.ChildCount(root, ChildOf))
}
