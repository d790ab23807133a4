package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/core/ecs"
)

// Name labels an entity for lookup from scenes, scripts and the console.
type Name struct {
	Value string
}

// ShapeKind selects the drawable a Shape stands for.
type ShapeKind uint8

const (
	Cube ShapeKind = iota
	Sphere
	Plane
	Marker
)

var shapeNames = [...]string{"cube", "sphere", "plane", "marker"}

func (k ShapeKind) String() string {
	if int(k) < len(shapeNames) {
		return shapeNames[k]
	}
	return "unknown"
}

// ParseShape resolves a shape name as written in scenes and scripts.
func ParseShape(s string) (ShapeKind, bool) {
	for i, n := range shapeNames {
		if n == s {
			return ShapeKind(i), true
		}
	}
	return 0, false
}

// Color is an 8-bit RGB colour.
type Color struct {
	R, G, B uint8
}

var (
	Red   = Color{230, 41, 55}
	Gray  = Color{130, 130, 130}
	White = Color{245, 245, 245}
	Green = Color{0, 228, 48}
	Blue  = Color{0, 121, 241}
)

// Shape is a drawable attached to a Transform. Asset is filled in by the
// render module once the drawable is loaded; zero means not loaded.
type Shape struct {
	Kind  ShapeKind
	Size  mgl32.Vec3
	Color Color
	Asset uint32
}

// Velocity moves a Transform every Logic tick, in units per second.
type Velocity struct {
	Linear mgl32.Vec3
}

// Tween animates one axis of a Transform's position between From and To over
// Duration seconds. Ease names an easing curve; Yoyo plays it back and forth.
type Tween struct {
	Axis     int
	From, To float32
	Duration float32
	Ease     string
	Yoyo     bool
}

// Button is a clickable 2D widget in screen cells.
type Button struct {
	Label         string
	X, Y, W, H    int
	Hovered, Down bool
}

// Contains reports whether the cell (x, y) is inside the button.
func (b *Button) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// Set holds the handles of the shared components for one world.
type Set struct {
	Name     ecs.Component[Name]
	Shape    ecs.Component[Shape]
	Velocity ecs.Component[Velocity]
	Button   ecs.Component[Button]
	Tween    ecs.Component[Tween]
}

// Register registers the shared components on w. Calling it again on the
// same world returns the same handles.
func Register(w *ecs.World) *Set {
	return &Set{
		Name:     ecs.Register[Name](w, "Name"),
		Shape:    ecs.Register[Shape](w, "Shape"),
		Velocity: ecs.Register[Velocity](w, "Velocity"),
		Button:   ecs.Register[Button](w, "Button"),
		Tween:    ecs.Register[Tween](w, "Tween"),
	}
}

// Lookup finds the first entity named name.
func (s *Set) Lookup(w *ecs.World, name string) (ecs.EntityID, bool) {
	q := w.MustQuery(ecs.QueryDesc{Terms: []ecs.Term{{Component: s.Name.ID()}}})
	for b := range q.Iter() {
		names := ecs.Field(b, s.Name)
		for i, e := range b.Entities() {
			if names[i].Value == name {
				return e, true
			}
		}
	}
	return 0, false
}

// NameOf returns e's name or "".
func (s *Set) NameOf(w *ecs.World, e ecs.EntityID) string {
	if n, ok := ecs.Get(w, e, s.Name); ok {
		return n.Value
	}
	return ""
}
