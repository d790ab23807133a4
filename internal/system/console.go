package system

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mattn/go-runewidth"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/config"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/render"
	"github.com/tickworld/engine/internal/transform"
)

// ConsoleCommandRan is emitted at the console module entity after every
// command, with a CommandEvent payload.
const ConsoleCommandRan event.Kind = "console.Command"

type CommandEvent struct {
	Name string
	Args []string
	Err  error
}

// ScriptRunner evaluates a chunk of script source for the lua command.
type ScriptRunner interface {
	DoString(src string) error
}

// Command is one console command.
type Command struct {
	Usage string
	Help  string
	Run   func(args []string) error
}

var errUsage = errors.New("usage")

// ConsoleModule is the in-game console: a toggleable prompt over the scene
// with a scrollback that also mirrors the process log.
type ConsoleModule struct {
	sb     *Scrollback
	hier   *transform.Hierarchy
	comps  *component.Set
	toggle render.Key
	lua    ScriptRunner

	host     *module.Host
	cc       *ConsoleContext
	input    []rune
	last     string
	commands map[string]Command
}

// NewConsoleModule builds the console. sb is shared with the log tee.
func NewConsoleModule(cfg config.ConsoleConfig, sb *Scrollback, hier *transform.Hierarchy, comps *component.Set) (*ConsoleModule, error) {
	k, err := render.ParseKey(cfg.ToggleKey)
	if err != nil {
		return nil, fmt.Errorf("console toggle key: %w", err)
	}
	m := &ConsoleModule{sb: sb, hier: hier, comps: comps, toggle: k}
	m.commands = map[string]Command{
		"echo":  {Usage: "echo <text>", Help: "print text", Run: m.echo},
		"clear": {Usage: "clear", Help: "empty the scrollback", Run: m.clear},
		"help":  {Usage: "help [command]", Help: "list commands", Run: m.help},
		"eval":  {Usage: "eval <rpn>", Help: "evaluate a reverse Polish expression", Run: m.eval},
		"pos":   {Usage: "pos [x y z]", Help: "show or set the player position", Run: m.pos},
		"reset": {Usage: "reset", Help: "move the player back to the origin", Run: m.reset},
		"lua":   {Usage: "lua <code>", Help: "run a line of Lua", Run: m.runLua},
		"quit":  {Usage: "quit", Help: "shut the engine down", Run: m.quit},
	}
	return m, nil
}

// BindScripts connects the lua command to a script engine.
func (m *ConsoleModule) BindScripts(r ScriptRunner) { m.lua = r }

func (m *ConsoleModule) Name() string { return "console" }

func (m *ConsoleModule) Init(h *module.Host) error {
	m.host = h
	m.cc = ecs.SetSingleton(h.World(), ConsoleContext{})

	p := h.Phases()
	if err := h.AddSystem("Setup", p.SetupModules, nil, coresys.SystemFunc(func(*coresys.TickContext) {
		m.cc.Loaded = true
	})); err != nil {
		return err
	}
	if err := h.AddSystem("Input", p.Input, nil, coresys.SystemFunc(m.readInput)); err != nil {
		return err
	}
	if err := h.AddSystem("Draw", p.Render2D, nil, coresys.SystemFunc(m.draw)); err != nil {
		return err
	}
	return h.OnCleanup(func() {
		m.cc.Loaded = false
		m.cc.Open = false
		m.input = m.input[:0]
		h.CleanupDone()
	})
}

func (m *ConsoleModule) readInput(tc *coresys.TickContext) {
	rc, ok := ecs.Singleton[RenderContext](tc.World)
	if !ok || !rc.Ready || !m.cc.Loaded {
		return
	}
	dev := rc.Device
	if dev.KeyPressed(m.toggle) {
		m.cc.Open = !m.cc.Open
		return
	}
	if !m.cc.Open {
		return
	}
	for _, r := range dev.TypedRunes() {
		if render.RuneKey(r) == m.toggle || !unicode.IsPrint(r) {
			continue
		}
		m.input = append(m.input, r)
	}
	switch {
	case dev.KeyPressed(render.KeyBackspace):
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case dev.KeyPressed(render.KeyUp):
		m.input = []rune(m.last)
	case dev.KeyPressed(render.KeyEnter):
		line := string(m.input)
		m.input = m.input[:0]
		m.Exec(line)
	}
}

// Exec runs one command line as if typed at the prompt.
func (m *ConsoleModule) Exec(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	m.last = line
	m.sb.Add("> " + line)
	name, args := fields[0], fields[1:]
	cmd, ok := m.commands[name]
	if !ok {
		m.sb.Add(fmt.Sprintf("unknown command %q, try help", name))
		return
	}
	err := cmd.Run(args)
	switch {
	case errors.Is(err, errUsage):
		m.sb.Add("usage: " + cmd.Usage)
	case err != nil:
		m.sb.Add("error: " + err.Error())
	}
	m.host.Bus().Emit(ConsoleCommandRan, m.host.Entity, CommandEvent{Name: name, Args: args, Err: err})
}

func (m *ConsoleModule) echo(args []string) error {
	m.sb.Add(strings.Join(args, " "))
	return nil
}

func (m *ConsoleModule) clear([]string) error {
	m.sb.Clear()
	return nil
}

func (m *ConsoleModule) help(args []string) error {
	if len(args) > 0 {
		cmd, ok := m.commands[args[0]]
		if !ok {
			return fmt.Errorf("no command %q", args[0])
		}
		m.sb.Add(cmd.Usage + " - " + cmd.Help)
		return nil
	}
	names := make([]string, 0, len(m.commands))
	for n := range m.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	m.sb.Add("commands: " + strings.Join(names, " "))
	return nil
}

func (m *ConsoleModule) eval(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	v, err := EvalRPN(strings.Join(args, " "))
	if err != nil {
		return err
	}
	m.sb.Add(strconv.FormatFloat(v, 'g', -1, 64))
	return nil
}

func (m *ConsoleModule) player() (ecs.EntityID, error) {
	e, ok := m.comps.Lookup(m.host.World(), PlayerNode)
	if !ok {
		return 0, fmt.Errorf("no %s in the scene", PlayerNode)
	}
	return e, nil
}

func (m *ConsoleModule) pos(args []string) error {
	e, err := m.player()
	if err != nil {
		return err
	}
	switch len(args) {
	case 0:
		t, ok := m.hier.Get(e)
		if !ok {
			return fmt.Errorf("%s has no transform", PlayerNode)
		}
		p := t.Position
		m.sb.Add(fmt.Sprintf("%.2f %.2f %.2f", p.X(), p.Y(), p.Z()))
		return nil
	case 3:
		var v mgl32.Vec3
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return fmt.Errorf("bad coordinate %q", a)
			}
			v[i] = float32(f)
		}
		m.hier.SetPosition(e, v)
		return nil
	}
	return errUsage
}

func (m *ConsoleModule) reset([]string) error {
	e, err := m.player()
	if err != nil {
		return err
	}
	m.hier.SetPosition(e, mgl32.Vec3{})
	return nil
}

func (m *ConsoleModule) runLua(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if m.lua == nil {
		return errors.New("scripting is disabled")
	}
	return m.lua.DoString(strings.Join(args, " "))
}

func (m *ConsoleModule) quit([]string) error {
	m.host.Log.Info("quit requested from console")
	m.host.RequestShutdown()
	return nil
}

func (m *ConsoleModule) draw(tc *coresys.TickContext) {
	rc, ok := ecs.Singleton[RenderContext](tc.World)
	if !ok || !rc.Ready || !m.cc.Loaded {
		return
	}
	dev := rc.Device
	width, height := dev.Size()
	if !m.cc.Open {
		dev.DrawText(0, height-1, "Press "+m.toggle.String()+" to toggle the console", component.Gray)
		return
	}
	lines := m.sb.Lines()
	rows := max(height-4, 1)
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	y := 2
	for _, l := range lines {
		dev.DrawText(0, y, runewidth.Truncate(l, width, "…"), component.White)
		y++
	}
	prompt := "> " + string(m.input) + "_"
	if runewidth.StringWidth(prompt) > width {
		// Keep the cursor end of a long line visible.
		prompt = runewidth.TruncateLeft(prompt, runewidth.StringWidth(prompt)-width+1, "…")
	}
	dev.DrawText(0, y, prompt, component.Green)
}
