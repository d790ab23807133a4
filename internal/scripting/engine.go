package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tickworld/engine/internal/component"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/transform"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as ECS_API_VERSION.
const APIVersion = 1

// Engine wraps a single gopher-lua VM bound to one world. Single-goroutine
// access only (tick loop). It is also the "scripting" module: script files
// load in SetupWorld, after the scene is spawned.
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	dir   string
	hier  *transform.Hierarchy
	comps *component.Set

	host    *module.Host
	codecs  map[string]codec
	systems int
}

// NewEngine creates the VM. dir is the script directory loaded at
// SetupWorld; empty means none.
func NewEngine(dir string, hier *transform.Hierarchy, comps *component.Set, log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("ECS_API_VERSION", lua.LNumber(APIVersion))
	e := &Engine{vm: vm, log: log, dir: dir, hier: hier, comps: comps}
	e.codecs = e.newCodecs()
	vm.SetGlobal("print", vm.NewFunction(e.luaPrint))
	return e
}

func (e *Engine) Name() string { return "scripting" }

func (e *Engine) Init(h *module.Host) error {
	e.host = h
	e.log = h.Log
	e.vm.SetGlobal("ecs", e.newAPI())
	if err := h.AddSystem("Load", h.Phases().SetupWorld, nil, coresys.SystemFunc(func(tc *coresys.TickContext) {
		if err := e.LoadDir(e.dir); err != nil {
			tc.Log.Error("load scripts", zap.Error(err))
		}
	})); err != nil {
		return err
	}
	return h.OnCleanup(h.CleanupDone)
}

// LoadDir runs every .lua file in dir in name order. A missing dir is not an
// error. A failing file is reported and does not stop the others.
func (e *Engine) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read script dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", path, err))
			continue
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return errors.Join(errs...)
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Systems returns the number of systems scripts have registered.
func (e *Engine) Systems() int { return e.systems }

// luaSystem runs a Lua function once per tick with the delta in seconds.
// Errors are logged and the scheduler carries on.
type luaSystem struct {
	e    *Engine
	name string
	fn   *lua.LFunction
}

func (s *luaSystem) Update(tc *coresys.TickContext) {
	if err := s.e.vm.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(tc.Seconds())); err != nil {
		tc.Log.Error("lua system error", zap.String("lua_system", s.name), zap.Error(err))
	}
}

// luaPrint sends print output to the log instead of stdout, which belongs to
// the terminal renderer.
func (e *Engine) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	e.log.Info("lua: " + strings.Join(parts, "\t"))
	return 0
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
