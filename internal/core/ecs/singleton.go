package ecs

import "reflect"

// SetSingleton stores v in the world-wide slot for T, overwriting in place
// when the slot already exists so earlier pointers observe the new value.
func SetSingleton[T any](w *World, v T) *T {
	t := reflect.TypeFor[T]()
	if p, ok := w.singletons[t]; ok {
		ptr := p.(*T)
		*ptr = v
		return ptr
	}
	ptr := new(T)
	*ptr = v
	w.singletons[t] = ptr
	return ptr
}

// Singleton returns the slot for T, or false if it was never set.
func Singleton[T any](w *World) (*T, bool) {
	p, ok := w.singletons[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return p.(*T), true
}

// RemoveSingleton clears the slot for T.
func RemoveSingleton[T any](w *World) {
	delete(w.singletons, reflect.TypeFor[T]())
}
