package ecs

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// archetype stores every entity that has exactly the component set ids.
// Rows are dense; removing a row swaps the last row into its place.
type archetype struct {
	key      uint64
	ids      []ComponentID // sorted
	index    map[ComponentID]int
	columns  []column
	entities []EntityID

	addEdge    map[ComponentID]*archetype
	removeEdge map[ComponentID]*archetype
}

func (a *archetype) has(id ComponentID) bool {
	_, ok := a.index[id]
	return ok
}

func (a *archetype) column(id ComponentID) (column, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return a.columns[i], true
}

// removeRow drops row and returns the entity that was moved into it, if any.
func (a *archetype) removeRow(row int) (EntityID, bool) {
	last := len(a.entities) - 1
	for _, c := range a.columns {
		c.swapRemove(row)
	}
	moved := a.entities[last]
	a.entities[row] = moved
	a.entities = a.entities[:last]
	return moved, row != last
}

// hashIDs digests a sorted component set into the archetype lookup key.
func hashIDs(ids []ComponentID) uint64 {
	d := xxhash.New()
	var buf [4]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint32(buf[:], uint32(id))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// archetypeFor returns the archetype for a sorted id set, creating it on demand.
func (w *World) archetypeFor(ids []ComponentID) *archetype {
	key := hashIDs(ids)
	for _, a := range w.archetypes[key] {
		if slices.Equal(a.ids, ids) {
			return a
		}
	}
	a := &archetype{
		key:        key,
		ids:        ids,
		index:      make(map[ComponentID]int, len(ids)),
		columns:    make([]column, len(ids)),
		entities:   make([]EntityID, 0, 16),
		addEdge:    make(map[ComponentID]*archetype),
		removeEdge: make(map[ComponentID]*archetype),
	}
	for i, id := range ids {
		a.index[id] = i
		a.columns[i] = w.components[id].newColumn()
	}
	w.archetypes[key] = append(w.archetypes[key], a)
	w.archList = append(w.archList, a)
	return a
}

func (w *World) archetypeWith(from *archetype, id ComponentID) *archetype {
	if to, ok := from.addEdge[id]; ok {
		return to
	}
	ids := make([]ComponentID, 0, len(from.ids)+1)
	ids = append(ids, from.ids...)
	ids = append(ids, id)
	slices.Sort(ids)
	to := w.archetypeFor(ids)
	from.addEdge[id] = to
	to.removeEdge[id] = from
	return to
}

func (w *World) archetypeWithout(from *archetype, id ComponentID) *archetype {
	if to, ok := from.removeEdge[id]; ok {
		return to
	}
	ids := make([]ComponentID, 0, len(from.ids))
	for _, have := range from.ids {
		if have != id {
			ids = append(ids, have)
		}
	}
	to := w.archetypeFor(ids)
	from.removeEdge[id] = to
	to.addEdge[id] = from
	return to
}

// moveEntity transfers e's row from its current archetype into dst, copying
// the components both share and zero-filling the rest.
func (w *World) moveEntity(e EntityID, dst *archetype) {
	rec := &w.records[e.Index()]
	src, row := rec.arch, rec.row
	w.noteLayout(e, src, dst)
	for i, id := range dst.ids {
		if sc, ok := src.column(id); ok {
			dst.columns[i].appendFrom(sc, row)
		} else {
			dst.columns[i].appendZero()
		}
	}
	dst.entities = append(dst.entities, e)
	if moved, ok := src.removeRow(row); ok {
		w.records[moved.Index()].row = row
	}
	rec.arch = dst
	rec.row = len(dst.entities) - 1
}
