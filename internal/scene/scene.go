// Package scene loads YAML scene documents into a world and captures a world
// back into a document.
package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/transform"
	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateName = errors.New("scene: duplicate entity name")
	ErrUnknownParent = errors.New("scene: unknown parent")
	ErrParentLoop    = errors.New("scene: parent chain loops")
	ErrBadEntity     = errors.New("scene: bad entity")
)

// Vec3 is written as a flow sequence [x, y, z].
type Vec3 [3]float32

func (v Vec3) mgl() mgl32.Vec3 { return mgl32.Vec3(v) }

// Document is one scene file.
type Document struct {
	Name     string   `yaml:"name"`
	Entities []Entity `yaml:"entities"`
}

// Entity describes one entity. Parent names another entity of the same
// document.
type Entity struct {
	Name      string         `yaml:"name,omitempty"`
	Parent    string         `yaml:"parent,omitempty"`
	Transform *TransformSpec `yaml:"transform,omitempty"`
	Shape     *ShapeSpec     `yaml:"shape,omitempty"`
	Velocity  *Vec3          `yaml:"velocity,omitempty,flow"`
	Tween     *TweenSpec     `yaml:"tween,omitempty"`
}

// TransformSpec places an entity. Rotation is a quaternion [x, y, z, w];
// Euler is degrees about X, Y, Z and wins when both are given.
type TransformSpec struct {
	Position Vec3        `yaml:"position,flow"`
	Rotation *[4]float32 `yaml:"rotation,omitempty,flow"`
	Euler    *Vec3       `yaml:"euler,omitempty,flow"`
	Scale    *Vec3       `yaml:"scale,omitempty,flow"`
}

type ShapeSpec struct {
	Kind  string    `yaml:"kind"`
	Size  *Vec3     `yaml:"size,omitempty,flow"`
	Color *[3]uint8 `yaml:"color,omitempty,flow"`
}

type TweenSpec struct {
	Axis     string  `yaml:"axis"`
	From     float32 `yaml:"from"`
	To       float32 `yaml:"to"`
	Duration float32 `yaml:"duration"`
	Ease     string  `yaml:"ease,omitempty"`
	Yoyo     bool    `yaml:"yoyo,omitempty"`
}

var axes = map[string]int{"x": 0, "y": 1, "z": 2}

// Load reads and validates the scene file at path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return Parse(raw, path)
}

// Parse decodes and validates a scene document. name is used in errors.
func Parse(raw []byte, name string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", name, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	return &doc, nil
}

// Validate checks names, parent references and component values.
func (d *Document) Validate() error {
	byName := make(map[string]*Entity, len(d.Entities))
	for i := range d.Entities {
		e := &d.Entities[i]
		if e.Name != "" {
			if _, dup := byName[e.Name]; dup {
				return fmt.Errorf("%w %q", ErrDuplicateName, e.Name)
			}
			byName[e.Name] = e
		}
		if e.Shape != nil {
			if _, ok := component.ParseShape(e.Shape.Kind); !ok {
				return fmt.Errorf("%w: entity %d: unknown shape %q", ErrBadEntity, i, e.Shape.Kind)
			}
		}
		if e.Tween != nil {
			if _, ok := axes[e.Tween.Axis]; !ok {
				return fmt.Errorf("%w: entity %d: tween axis %q", ErrBadEntity, i, e.Tween.Axis)
			}
			if e.Tween.Duration <= 0 {
				return fmt.Errorf("%w: entity %d: tween duration %v", ErrBadEntity, i, e.Tween.Duration)
			}
		}
	}
	for _, e := range d.Entities {
		if _, ok := byName[e.Parent]; e.Parent != "" && !ok {
			return fmt.Errorf("%w %q for %q", ErrUnknownParent, e.Parent, e.Name)
		}
	}
	for _, e := range d.Entities {
		steps := 0
		for p := e.Parent; p != ""; p = byName[p].Parent {
			if p == e.Name || steps > len(d.Entities) {
				return fmt.Errorf("%w at %q", ErrParentLoop, e.Name)
			}
			steps++
		}
	}
	return nil
}

// Spawn creates every entity of d in w and then attaches parents, so a child
// may appear before its parent in the file. It returns the new ids in
// document order.
func Spawn(d *Document, hier *transform.Hierarchy, comps *component.Set) ([]ecs.EntityID, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	w := hier.World()
	ids := make([]ecs.EntityID, len(d.Entities))
	byName := make(map[string]ecs.EntityID, len(d.Entities))
	for i, spec := range d.Entities {
		e := w.CreateEntity()
		ids[i] = e
		if spec.Name != "" {
			ecs.Set(w, e, comps.Name, component.Name{Value: spec.Name})
			byName[spec.Name] = e
		}
		if spec.Transform != nil {
			hier.Put(e, spec.Transform.build())
		}
		if spec.Shape != nil {
			ecs.Set(w, e, comps.Shape, spec.Shape.build())
		}
		if spec.Velocity != nil {
			ecs.Set(w, e, comps.Velocity, component.Velocity{Linear: spec.Velocity.mgl()})
		}
		if spec.Tween != nil {
			tw := spec.Tween
			ecs.Set(w, e, comps.Tween, component.Tween{
				Axis:     axes[tw.Axis],
				From:     tw.From,
				To:       tw.To,
				Duration: tw.Duration,
				Ease:     tw.Ease,
				Yoyo:     tw.Yoyo,
			})
		}
	}
	for i, spec := range d.Entities {
		if spec.Parent != "" {
			hier.Attach(ids[i], byName[spec.Parent])
		}
	}
	return ids, nil
}

func (t *TransformSpec) build() transform.Transform {
	out := transform.New(t.Position.mgl())
	if t.Rotation != nil {
		r := t.Rotation
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		if q.Len() > 0 {
			out.Rotation = q.Normalize()
		}
	}
	if t.Euler != nil {
		out.Rotation = transform.EulerDegrees(t.Euler.mgl())
	}
	if t.Scale != nil {
		out.Scale = t.Scale.mgl()
	}
	return out
}

func (s *ShapeSpec) build() component.Shape {
	kind, _ := component.ParseShape(s.Kind)
	out := component.Shape{Kind: kind, Size: mgl32.Vec3{1, 1, 1}, Color: component.Gray}
	if s.Size != nil {
		out.Size = s.Size.mgl()
	}
	if s.Color != nil {
		out.Color = component.Color{R: s.Color[0], G: s.Color[1], B: s.Color[2]}
	}
	return out
}

// Capture builds a document from every named entity that has a Transform,
// sorted by name. Only the first entity of a repeated name is kept. Parents
// that were not captured are dropped.
func Capture(name string, hier *transform.Hierarchy, comps *component.Set) *Document {
	w := hier.World()
	q := w.MustQuery(ecs.QueryDesc{Terms: []ecs.Term{
		{Component: comps.Name.ID()},
		{Component: hier.C.ID()},
	}})
	captured := make(map[ecs.EntityID]bool)
	seen := make(map[string]bool)
	var list []ecs.EntityID
	for b := range q.Iter() {
		names := ecs.Field(b, comps.Name)
		for i, e := range b.Entities() {
			if n := names[i].Value; n != "" && !seen[n] {
				seen[n] = true
				captured[e] = true
				list = append(list, e)
			}
		}
	}

	doc := &Document{Name: name, Entities: make([]Entity, 0, len(list))}
	for _, e := range list {
		t, _ := hier.Get(e)
		r := t.Rotation
		scale := Vec3(t.Scale)
		spec := Entity{
			Name: comps.NameOf(w, e),
			Transform: &TransformSpec{
				Position: Vec3(t.Position),
				Rotation: &[4]float32{r.V.X(), r.V.Y(), r.V.Z(), r.W},
				Scale:    &scale,
			},
		}
		if p, ok := w.Parent(e, ecs.ChildOf); ok && captured[p] {
			spec.Parent = comps.NameOf(w, p)
		}
		if s, ok := ecs.Get(w, e, comps.Shape); ok {
			size := Vec3(s.Size)
			spec.Shape = &ShapeSpec{
				Kind:  s.Kind.String(),
				Size:  &size,
				Color: &[3]uint8{s.Color.R, s.Color.G, s.Color.B},
			}
		}
		if v, ok := ecs.Get(w, e, comps.Velocity); ok {
			lin := Vec3(v.Linear)
			spec.Velocity = &lin
		}
		if tw, ok := ecs.Get(w, e, comps.Tween); ok && tw.Axis >= 0 && tw.Axis < 3 {
			spec.Tween = &TweenSpec{
				Axis:     [3]string{"x", "y", "z"}[tw.Axis],
				From:     tw.From,
				To:       tw.To,
				Duration: tw.Duration,
				Ease:     tw.Ease,
				Yoyo:     tw.Yoyo,
			}
		}
		doc.Entities = append(doc.Entities, spec)
	}
	sort.Slice(doc.Entities, func(i, j int) bool { return doc.Entities[i].Name < doc.Entities[j].Name })
	return doc
}

// Marshal encodes d as YAML.
func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal scene %s: %w", d.Name, err)
	}
	return out, nil
}

// Save writes d to path, creating the directory.
func Save(path string, d *Document) error {
	raw, err := d.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scene dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}
