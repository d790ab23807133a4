package ecs

import (
	"fmt"
	"reflect"
)

// ComponentID identifies a registered component type within one World.
// Zero is never assigned.
type ComponentID uint32

// Component is the typed handle returned by Register. Carrying T in the handle
// makes a size/type mismatch between caller and column a compile error.
type Component[T any] struct {
	id ComponentID
}

func (c Component[T]) ID() ComponentID { return c.id }

type componentInfo struct {
	id        ComponentID
	name      string
	typ       reflect.Type
	newColumn func() column
	setAny    func(w *World, e EntityID, v any)
}

// Register adds T to the world under name and returns its handle.
// Registering the same (name, T) again returns the existing handle; reusing a
// name for a different type panics.
func Register[T any](w *World, name string) Component[T] {
	typ := reflect.TypeFor[T]()
	if id, ok := w.byName[name]; ok {
		info := w.components[id]
		if info.typ != typ {
			panic(fmt.Errorf("%w: %q is %s, not %s", ErrDuplicateName, name, info.typ, typ))
		}
		return Component[T]{id: id}
	}

	id := ComponentID(len(w.components))
	c := Component[T]{id: id}
	w.components = append(w.components, &componentInfo{
		id:        id,
		name:      name,
		typ:       typ,
		newColumn: func() column { return &typedColumn[T]{data: make([]T, 0, 16)} },
		setAny: func(w *World, e EntityID, v any) {
			Set(w, e, c, v.(T))
		},
	})
	w.byName[name] = id
	return c
}

// ComponentByName resolves a registered component name.
func (w *World) ComponentByName(name string) (ComponentID, bool) {
	id, ok := w.byName[name]
	return id, ok
}

// ComponentName returns the registered name of id, or "" if unknown.
func (w *World) ComponentName(id ComponentID) string {
	if info := w.info(id); info != nil {
		return info.name
	}
	return ""
}

// ComponentType returns the Go type registered for id.
func (w *World) ComponentType(id ComponentID) reflect.Type {
	if info := w.info(id); info != nil {
		return info.typ
	}
	return nil
}

func (w *World) info(id ComponentID) *componentInfo {
	if id == 0 || int(id) >= len(w.components) {
		return nil
	}
	return w.components[id]
}

func (w *World) mustInfo(id ComponentID, typ reflect.Type) *componentInfo {
	info := w.info(id)
	if info == nil {
		panic(fmt.Errorf("%w: id %d", ErrUnregistered, id))
	}
	if typ != nil && info.typ != typ {
		panic(fmt.Errorf("%w: %q holds %s, got %s", ErrTypeMismatch, info.name, info.typ, typ))
	}
	return info
}

// column is one component's storage inside an archetype.
type column interface {
	len() int
	appendZero()
	appendFrom(src column, row int)
	swapRemove(row int)
	ptr(row int) any
}

type typedColumn[T any] struct {
	data []T
}

func (c *typedColumn[T]) len() int { return len(c.data) }

func (c *typedColumn[T]) appendZero() {
	var zero T
	c.data = append(c.data, zero)
}

func (c *typedColumn[T]) appendFrom(src column, row int) {
	c.data = append(c.data, src.(*typedColumn[T]).data[row])
}

func (c *typedColumn[T]) swapRemove(row int) {
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
}

func (c *typedColumn[T]) ptr(row int) any { return &c.data[row] }
