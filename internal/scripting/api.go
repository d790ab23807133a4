package scripting

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// newAPI builds the global ecs table.
func (e *Engine) newAPI() *lua.LTable {
	return e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"new":      e.luaNew,
		"destroy":  e.luaDestroy,
		"alive":    e.luaAlive,
		"set":      e.luaSet,
		"get":      e.luaGet,
		"lookup":   e.luaLookup,
		"parent":   e.luaParent,
		"unparent": e.luaUnparent,
		"progress": e.luaProgress,
		"system":   e.luaSystem,
		"emit":     e.luaEmit,
		"observe":  e.luaObserve,
		"quit":     e.luaQuit,
	})
}

func (e *Engine) world() *ecs.World { return e.host.World() }

// maxNumberID is the largest id a Lua number holds exactly.
const maxNumberID = 1<<53 - 1

// idValue encodes id for scripts. Ids up to maxNumberID are numbers. Larger
// ids, whose generation has passed 2^21, are decimal strings. Each id has one
// encoding, so == works on both forms.
func idValue(id ecs.EntityID) lua.LValue {
	if uint64(id) <= maxNumberID {
		return lua.LNumber(id)
	}
	return lua.LString(strconv.FormatUint(uint64(id), 10))
}

// toID decodes a value made by idValue. Negative, fractional and inexact
// numbers are rejected.
func toID(v lua.LValue) (ecs.EntityID, bool) {
	switch v := v.(type) {
	case lua.LNumber:
		f := float64(v)
		if f < 0 || f > maxNumberID || f != math.Trunc(f) {
			return 0, false
		}
		return ecs.EntityID(uint64(f)), true
	case lua.LString:
		n, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil || n <= maxNumberID {
			return 0, false
		}
		return ecs.EntityID(n), true
	}
	return 0, false
}

func pushID(L *lua.LState, id ecs.EntityID) {
	L.Push(idValue(id))
}

// checkID reads an entity id, live or not, from argument n.
func checkID(L *lua.LState, n int) ecs.EntityID {
	id, ok := toID(L.Get(n))
	if !ok {
		L.ArgError(n, "entity id expected, got "+L.Get(n).String())
	}
	return id
}

// checkEntity reads a live entity id from argument n.
func (e *Engine) checkEntity(L *lua.LState, n int) ecs.EntityID {
	id := checkID(L, n)
	if !e.world().Alive(id) {
		L.ArgError(n, fmt.Sprintf("stale or destroyed entity %s", id))
	}
	return id
}

// ecs.new([name]) -> id
func (e *Engine) luaNew(L *lua.LState) int {
	w := e.world()
	id := w.CreateEntity()
	if name := L.OptString(1, ""); name != "" {
		ecs.Set(w, id, e.comps.Name, component.Name{Value: name})
	}
	pushID(L, id)
	return 1
}

// ecs.destroy(id)
func (e *Engine) luaDestroy(L *lua.LState) int {
	e.world().DestroyEntity(e.checkEntity(L, 1))
	return 0
}

// ecs.alive(id) -> bool
func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.world().Alive(checkID(L, 1))))
	return 1
}

// ecs.set(id, component, value)
func (e *Engine) luaSet(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	name := L.CheckString(2)
	c, ok := e.codecs[name]
	if !ok {
		L.ArgError(2, "unknown component "+name)
	}
	if err := c.set(id, L.CheckAny(3)); err != nil {
		L.ArgError(3, err.Error())
	}
	return 0
}

// ecs.get(id, component) -> value or nil
func (e *Engine) luaGet(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	name := L.CheckString(2)
	c, ok := e.codecs[name]
	if !ok {
		L.ArgError(2, "unknown component "+name)
	}
	L.Push(c.get(L, id))
	return 1
}

// ecs.lookup(name) -> id or nil
func (e *Engine) luaLookup(L *lua.LState) int {
	id, ok := e.comps.Lookup(e.world(), L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	pushID(L, id)
	return 1
}

// ecs.parent(child, parent)
func (e *Engine) luaParent(L *lua.LState) int {
	child, parent := e.checkEntity(L, 1), e.checkEntity(L, 2)
	if err := attach(e, child, parent); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// attach converts the store's cycle panic into an error for the script.
func attach(e *Engine, child, parent ecs.EntityID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok || !errors.Is(rerr, ecs.ErrRelationCycle) {
				panic(r)
			}
			err = rerr
		}
	}()
	e.hier.Attach(child, parent)
	return nil
}

// ecs.unparent(child)
func (e *Engine) luaUnparent(L *lua.LState) int {
	e.hier.Detach(e.checkEntity(L, 1))
	return 0
}

// ecs.progress([dt]) -> true or false, message
func (e *Engine) luaProgress(L *lua.LState) int {
	dt := seconds(float64(L.OptNumber(1, 0)))
	if err := e.host.Scheduler().Tick(dt); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// ecs.system(name, fn [, phase]) registers fn(dt) in the Logic phase or
// the named phase.
func (e *Engine) luaSystem(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	phase := e.host.Phases().Logic
	if pn := L.OptString(3, ""); pn != "" {
		p, ok := e.host.Scheduler().PhaseByName(pn)
		if !ok {
			L.ArgError(3, "unknown phase "+pn)
		}
		phase = p
	}
	if err := e.host.AddSystem("lua."+name, phase, nil, &luaSystem{e: e, name: name, fn: fn}); err != nil {
		L.RaiseError("%s", err.Error())
	}
	e.systems++
	return 0
}

// ecs.emit(kind, target [, payload])
func (e *Engine) luaEmit(L *lua.LState) int {
	kind := L.CheckString(1)
	var target ecs.EntityID
	if L.Get(2) != lua.LNil {
		target = checkID(L, 2)
	}
	var payload any
	if v := L.Get(3); v != lua.LNil {
		payload = lua.LVAsString(v)
	}
	e.host.Bus().Emit(event.Kind(kind), target, payload)
	return 0
}

// ecs.observe(kind, fn [, entity]) calls fn(target, payload) for each event.
func (e *Engine) luaObserve(L *lua.LState) int {
	kind := L.CheckString(1)
	fn := L.CheckFunction(2)
	f := event.Filter{}
	if L.GetTop() >= 3 {
		f = event.Filter{Entity: e.checkEntity(L, 3), Rel: ecs.ChildOf}
	}
	name := fmt.Sprintf("lua.%s", kind)
	err := e.host.Observe(name, f, func(ev event.Event) {
		var payload lua.LValue = lua.LNil
		if s, ok := ev.Payload.(string); ok {
			payload = lua.LString(s)
		}
		if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, idValue(ev.Target), payload); err != nil {
			e.log.Error("lua observer error", zap.String("kind", kind), zap.Error(err))
		}
	}, event.Kind(kind))
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// ecs.quit()
func (e *Engine) luaQuit(L *lua.LState) int {
	e.host.RequestShutdown()
	return 0
}

var _ coresys.System = (*luaSystem)(nil)
