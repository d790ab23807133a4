package scripting

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/transform"
	lua "github.com/yuin/gopher-lua"
)

// codec moves one component between the store and Lua values.
type codec struct {
	set func(e ecs.EntityID, v lua.LValue) error
	get func(L *lua.LState, e ecs.EntityID) lua.LValue
}

var errNotTable = errors.New("expected a table")

func (e *Engine) newCodecs() map[string]codec {
	w := func() *ecs.World { return e.hier.World() }
	return map[string]codec{
		"Transform": {
			set: func(id ecs.EntityID, v lua.LValue) error {
				t, ok := e.hier.Get(id)
				cur := transform.New(mgl32.Vec3{})
				if ok {
					cur = *t
				}
				if err := decodeTransform(v, &cur); err != nil {
					return err
				}
				e.hier.Put(id, cur)
				return nil
			},
			get: func(L *lua.LState, id ecs.EntityID) lua.LValue {
				t, ok := e.hier.Get(id)
				if !ok {
					return lua.LNil
				}
				tb := L.NewTable()
				tb.RawSetString("position", pushVec(L, t.Position))
				q := L.NewTable()
				q.RawSetString("x", lua.LNumber(t.Rotation.V.X()))
				q.RawSetString("y", lua.LNumber(t.Rotation.V.Y()))
				q.RawSetString("z", lua.LNumber(t.Rotation.V.Z()))
				q.RawSetString("w", lua.LNumber(t.Rotation.W))
				tb.RawSetString("rotation", q)
				tb.RawSetString("scale", pushVec(L, t.Scale))
				tb.RawSetString("world", pushVec(L, t.WorldPosition()))
				return tb
			},
		},
		"Velocity": {
			set: func(id ecs.EntityID, v lua.LValue) error {
				vec, err := toVec(v)
				if err != nil {
					return err
				}
				ecs.Set(w(), id, e.comps.Velocity, component.Velocity{Linear: vec})
				return nil
			},
			get: func(L *lua.LState, id ecs.EntityID) lua.LValue {
				vel, ok := ecs.Get(w(), id, e.comps.Velocity)
				if !ok {
					return lua.LNil
				}
				return pushVec(L, vel.Linear)
			},
		},
		"Name": {
			set: func(id ecs.EntityID, v lua.LValue) error {
				s, ok := v.(lua.LString)
				if !ok {
					return errors.New("expected a string")
				}
				ecs.Set(w(), id, e.comps.Name, component.Name{Value: string(s)})
				return nil
			},
			get: func(L *lua.LState, id ecs.EntityID) lua.LValue {
				n, ok := ecs.Get(w(), id, e.comps.Name)
				if !ok {
					return lua.LNil
				}
				return lua.LString(n.Value)
			},
		},
		"Shape": {
			set: func(id ecs.EntityID, v lua.LValue) error {
				s, err := decodeShape(v)
				if err != nil {
					return err
				}
				ecs.Set(w(), id, e.comps.Shape, s)
				return nil
			},
			get: func(L *lua.LState, id ecs.EntityID) lua.LValue {
				s, ok := ecs.Get(w(), id, e.comps.Shape)
				if !ok {
					return lua.LNil
				}
				tb := L.NewTable()
				tb.RawSetString("kind", lua.LString(s.Kind.String()))
				tb.RawSetString("size", pushVec(L, s.Size))
				c := L.NewTable()
				c.RawSetString("r", lua.LNumber(s.Color.R))
				c.RawSetString("g", lua.LNumber(s.Color.G))
				c.RawSetString("b", lua.LNumber(s.Color.B))
				tb.RawSetString("color", c)
				return tb
			},
		},
		"Tween": {
			set: func(id ecs.EntityID, v lua.LValue) error {
				tb, ok := v.(*lua.LTable)
				if !ok {
					return errNotTable
				}
				ecs.Set(w(), id, e.comps.Tween, component.Tween{
					Axis:     int(lua.LVAsNumber(tb.RawGetString("axis"))),
					From:     float32(lua.LVAsNumber(tb.RawGetString("from"))),
					To:       float32(lua.LVAsNumber(tb.RawGetString("to"))),
					Duration: float32(lua.LVAsNumber(tb.RawGetString("duration"))),
					Ease:     lua.LVAsString(tb.RawGetString("ease")),
					Yoyo:     lua.LVAsBool(tb.RawGetString("yoyo")),
				})
				return nil
			},
			get: func(L *lua.LState, id ecs.EntityID) lua.LValue {
				tw, ok := ecs.Get(w(), id, e.comps.Tween)
				if !ok {
					return lua.LNil
				}
				tb := L.NewTable()
				tb.RawSetString("axis", lua.LNumber(tw.Axis))
				tb.RawSetString("from", lua.LNumber(tw.From))
				tb.RawSetString("to", lua.LNumber(tw.To))
				tb.RawSetString("duration", lua.LNumber(tw.Duration))
				tb.RawSetString("ease", lua.LString(tw.Ease))
				tb.RawSetString("yoyo", lua.LBool(tw.Yoyo))
				return tb
			},
		},
	}
}

// toVec accepts {x=, y=, z=} or {1, 2, 3}. Missing components are zero.
func toVec(v lua.LValue) (mgl32.Vec3, error) {
	tb, ok := v.(*lua.LTable)
	if !ok {
		return mgl32.Vec3{}, fmt.Errorf("vector: %w", errNotTable)
	}
	var out mgl32.Vec3
	for i, k := range [3]string{"x", "y", "z"} {
		f := tb.RawGetString(k)
		if f == lua.LNil {
			f = tb.RawGetInt(i + 1)
		}
		out[i] = float32(lua.LVAsNumber(f))
	}
	return out, nil
}

func pushVec(L *lua.LState, v mgl32.Vec3) *lua.LTable {
	tb := L.NewTable()
	tb.RawSetString("x", lua.LNumber(v.X()))
	tb.RawSetString("y", lua.LNumber(v.Y()))
	tb.RawSetString("z", lua.LNumber(v.Z()))
	return tb
}

// decodeTransform overwrites the fields present in v. Rotation is either a
// quaternion {x,y,z,w} under "rotation" or Euler degrees under "euler".
func decodeTransform(v lua.LValue, t *transform.Transform) error {
	tb, ok := v.(*lua.LTable)
	if !ok {
		return fmt.Errorf("transform: %w", errNotTable)
	}
	if p := tb.RawGetString("position"); p != lua.LNil {
		vec, err := toVec(p)
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		t.Position = vec
	}
	if s := tb.RawGetString("scale"); s != lua.LNil {
		vec, err := toVec(s)
		if err != nil {
			return fmt.Errorf("scale: %w", err)
		}
		t.Scale = vec
	}
	if r := tb.RawGetString("rotation"); r != lua.LNil {
		rt, ok := r.(*lua.LTable)
		if !ok {
			return fmt.Errorf("rotation: %w", errNotTable)
		}
		num := func(k string) float32 { return float32(lua.LVAsNumber(rt.RawGetString(k))) }
		t.Rotation = mgl32.Quat{W: num("w"), V: mgl32.Vec3{num("x"), num("y"), num("z")}}.Normalize()
	}
	if r := tb.RawGetString("euler"); r != lua.LNil {
		deg, err := toVec(r)
		if err != nil {
			return fmt.Errorf("euler: %w", err)
		}
		t.Rotation = transform.EulerDegrees(deg)
	}
	return nil
}

func decodeShape(v lua.LValue) (component.Shape, error) {
	tb, ok := v.(*lua.LTable)
	if !ok {
		return component.Shape{}, fmt.Errorf("shape: %w", errNotTable)
	}
	name := lua.LVAsString(tb.RawGetString("kind"))
	kind, ok := component.ParseShape(name)
	if !ok {
		return component.Shape{}, fmt.Errorf("unknown shape kind %q", name)
	}
	s := component.Shape{Kind: kind, Size: mgl32.Vec3{1, 1, 1}, Color: component.Gray}
	if sz := tb.RawGetString("size"); sz != lua.LNil {
		vec, err := toVec(sz)
		if err != nil {
			return s, fmt.Errorf("size: %w", err)
		}
		s.Size = vec
	}
	if c, ok := tb.RawGetString("color").(*lua.LTable); ok {
		ch := func(k string) uint8 { return uint8(lua.LVAsNumber(c.RawGetString(k))) }
		s.Color = component.Color{R: ch("r"), G: ch("g"), B: ch("b")}
	}
	return s, nil
}
