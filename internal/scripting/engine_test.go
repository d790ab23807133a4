package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/system"
	"github.com/tickworld/engine/internal/transform"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	w     *ecs.World
	bus   *event.Bus
	sched *coresys.Scheduler
	mgr   *module.Manager
	hier  *transform.Hierarchy
	comps *component.Set
	eng   *Engine
	logs  *observer.ObservedLogs
}

func newFixture(t *testing.T, dir string) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)
	w := ecs.NewWorld()
	bus := event.NewBus(w, log)
	sched := coresys.NewScheduler(w, bus, log)
	pipe, err := coresys.NewPipeline(sched)
	require.NoError(t, err)
	mgr, err := module.NewManager(sched, pipe, log)
	require.NoError(t, err)
	hier := transform.NewHierarchy(w)
	comps := component.Register(w)
	eng := NewEngine(dir, hier, comps, log)
	t.Cleanup(eng.Close)
	require.NoError(t, mgr.Register(system.NewTransformModule(hier)))
	require.NoError(t, mgr.Register(eng))
	return &fixture{w: w, bus: bus, sched: sched, mgr: mgr, hier: hier, comps: comps, eng: eng, logs: logs}
}

func (f *fixture) run(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, f.eng.DoString(src))
}

func (f *fixture) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.sched.Tick(time.Second/60))
	}
}

func (f *fixture) global(name string) lua.LValue {
	return f.eng.vm.GetGlobal(name)
}

func TestLuaEntityRoundTrip(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		local e = ecs.new("Ball")
		ecs.set(e, "Transform", {position = {1, 2, 3}})
		ecs.set(e, "Velocity", {x = 0, y = -1})
		ecs.set(e, "Shape", {kind = "sphere", color = {r = 230, g = 41, b = 55}})
		found = ecs.lookup("Ball") == e
		px = ecs.get(e, "Transform").position.x
		kind = ecs.get(e, "Shape").kind
		name = ecs.get(e, "Name")
		missing = ecs.lookup("Nope") == nil
		novel = ecs.get(e, "Tween") == nil
	`)
	assert.Equal(t, lua.LTrue, f.global("found"))
	assert.Equal(t, lua.LNumber(1), f.global("px"))
	assert.Equal(t, lua.LString("sphere"), f.global("kind"))
	assert.Equal(t, lua.LString("Ball"), f.global("name"))
	assert.Equal(t, lua.LTrue, f.global("missing"))
	assert.Equal(t, lua.LTrue, f.global("novel"))

	e, ok := f.comps.Lookup(f.w, "Ball")
	require.True(t, ok)
	tr, ok := f.hier.Get(e)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, tr.Position)
	assert.True(t, tr.Dirty)
	v, _ := ecs.Get(f.w, e, f.comps.Velocity)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, v.Linear)
	s, _ := ecs.Get(f.w, e, f.comps.Shape)
	assert.Equal(t, component.Sphere, s.Kind)
	assert.Equal(t, component.Red, s.Color)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, s.Size)
}

func TestLuaTransformMergesFields(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		e = ecs.new()
		ecs.set(e, "Transform", {position = {x = 4}, scale = {2, 2, 2}})
		ecs.set(e, "Transform", {euler = {0, 90, 0}})
		local t = ecs.get(e, "Transform")
		sx, px = t.scale.x, t.position.x
	`)
	assert.Equal(t, lua.LNumber(2), f.global("sx"))
	assert.Equal(t, lua.LNumber(4), f.global("px"))
}

func TestLuaSystemRunsEachTick(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		count = 0
		ecs.system("counter", function(dt) count = count + 1; last_dt = dt end)
	`)
	f.tick(t, 3)
	assert.Equal(t, lua.LNumber(3), f.global("count"))
	assert.InDelta(t, 1.0/60, float64(lua.LVAsNumber(f.global("last_dt"))), 1e-6)
	assert.Equal(t, 1, f.eng.Systems())
}

func TestLuaSystemErrorsAreLoggedNotFatal(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		after = 0
		ecs.system("bad", function() error("boom") end)
		ecs.system("after", function() after = after + 1 end)
	`)
	f.tick(t, 2)
	assert.Equal(t, lua.LNumber(2), f.global("after"))
	assert.Equal(t, 2, f.logs.FilterMessage("lua system error").Len())
}

func TestLuaProgress(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `ok = ecs.progress(0.5)`)
	assert.Equal(t, lua.LTrue, f.global("ok"))
	assert.Equal(t, uint64(1), f.sched.Stats().Ticks)

	f.run(t, `ecs.system("nested", function() nested_ok, nested_err = ecs.progress() end)`)
	f.tick(t, 1)
	assert.Equal(t, lua.LFalse, f.global("nested_ok"))
	assert.Contains(t, lua.LVAsString(f.global("nested_err")), "tick already in progress")
}

func TestLuaParenting(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		p = ecs.new("P"); ecs.set(p, "Transform", {position = {1, 0, 0}})
		c = ecs.new("C"); ecs.set(c, "Transform", {position = {0, 1, 0}})
		ecs.parent(c, p)
	`)
	f.tick(t, 1)
	f.run(t, `
		local w = ecs.get(c, "Transform").world
		wx, wy = w.x, w.y
		cycle_ok, cycle_err = pcall(ecs.parent, p, c)
	`)
	assert.Equal(t, lua.LNumber(1), f.global("wx"))
	assert.Equal(t, lua.LNumber(1), f.global("wy"))
	assert.Equal(t, lua.LFalse, f.global("cycle_ok"))
	assert.Contains(t, lua.LVAsString(f.global("cycle_err")), "relation cycle")

	f.run(t, `ecs.unparent(c)`)
	f.tick(t, 1)
	f.run(t, `wx = ecs.get(c, "Transform").world.x`)
	assert.Equal(t, lua.LNumber(0), f.global("wx"))
}

func TestLuaEmitAndObserve(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		got = {}
		ecs.observe("demo.Ping", function(target, payload) got[#got + 1] = payload end)
		ecs.emit("demo.Ping", 0, "hello")
	`)
	f.bus.Emit("demo.Ping", 0, "from go")
	f.run(t, `n, first, second = #got, got[1], got[2]`)
	assert.Equal(t, lua.LNumber(2), f.global("n"))
	assert.Equal(t, lua.LString("hello"), f.global("first"))
	assert.Equal(t, lua.LString("from go"), f.global("second"))
}

func TestLuaRejectsBadArguments(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `
		local dead = ecs.new()
		ecs.destroy(dead)
		alive = ecs.alive(dead)
		stale_ok = pcall(ecs.set, dead, "Name", "x")
		local e = ecs.new()
		unknown_ok = pcall(ecs.set, e, "Bogus", 1)
		shape_ok = pcall(ecs.set, e, "Shape", {kind = "torus"})
		vec_ok = pcall(ecs.set, e, "Velocity", 3)
		phase_ok = pcall(ecs.system, "x", function() end, "Nowhere")
	`)
	for _, g := range []string{"alive", "stale_ok", "unknown_ok", "shape_ok", "vec_ok", "phase_ok"} {
		assert.Equal(t, lua.LFalse, f.global(g), g)
	}
}

func TestEntityIDsSurviveScripts(t *testing.T) {
	ids := []ecs.EntityID{
		ecs.NewEntityID(7, 0),
		ecs.NewEntityID(7, 1<<21-1),
		ecs.NewEntityID(7, 1<<21),
		ecs.NewEntityID(1<<32-1, 1<<32-1),
	}
	for _, id := range ids {
		v := idValue(id)
		back, ok := toID(v)
		require.True(t, ok, "%s", id)
		assert.Equal(t, id, back)
	}
	assert.IsType(t, lua.LNumber(0), idValue(ids[1]))
	assert.IsType(t, lua.LString(""), idValue(ids[2]))

	for _, v := range []lua.LValue{
		lua.LNumber(-1),
		lua.LNumber(1.5),
		lua.LNumber(1 << 60),
		lua.LString("12"),
		lua.LString("nope"),
		lua.LTrue,
	} {
		_, ok := toID(v)
		assert.False(t, ok, "%v", v)
	}

	f := newFixture(t, "")
	f.run(t, `
		negative_ok = pcall(ecs.alive, -1)
		fraction_ok = pcall(ecs.destroy, 1.5)
		emit_ok = pcall(ecs.emit, "demo.Ping", -3)
	`)
	for _, g := range []string{"negative_ok", "fraction_ok", "emit_ok"} {
		assert.Equal(t, lua.LFalse, f.global(g), g)
	}
}

func TestLuaQuitStartsShutdown(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `ecs.quit()`)
	assert.Equal(t, module.CleanupRequested, f.mgr.Stage())
	f.tick(t, 1)
	assert.True(t, f.mgr.ShouldQuit())
}

func TestLuaPrintGoesToLog(t *testing.T) {
	f := newFixture(t, "")
	f.run(t, `print("hi", 1)`)
	assert.Equal(t, 1, f.logs.FilterMessage("lua: hi\t1").Len())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	write("b.lua", `order = (order or "") .. "b"`)
	write("a.lua", `order = (order or "") .. "a"`)
	write("c.txt", `order = "broken"`)
	write("d.lua", `this is not lua`)

	f := newFixture(t, dir)
	f.tick(t, 1)
	assert.Equal(t, lua.LString("ab"), f.global("order"))
	assert.Equal(t, 1, f.logs.FilterMessage("load scripts").Len())

	err := f.eng.LoadDir(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	err = f.eng.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "d.lua")
}
