package render

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mattn/go-runewidth"
	"github.com/tickworld/engine/internal/component"
	"go.uber.org/zap"
)

// holdFrames is how long a key counts as down after its last repeat.
// Terminals report presses and auto-repeat but no releases.
const holdFrames = 6

// cellAspect is the height/width ratio of a terminal cell.
const cellAspect = 2

// Terminal is a Device on a tcell screen. Screen events are read by Pump on
// its own goroutine and handed to the tick goroutine through a bounded
// channel that Poll drains.
type Terminal struct {
	assets

	screen tcell.Screen
	log    *zap.Logger
	events chan tcell.Event
	ready  chan struct{}
	open   bool

	camera Camera
	in3D   bool
	bg     tcell.Style

	pressed  map[Key]bool
	held     map[Key]int
	runes    []rune
	mx, my   int
	dx, dy   float32
	click    bool
	closeReq bool
	captured bool
	dropped  atomic.Uint64
}

// NewTerminal wraps screen. queue bounds the number of events buffered
// between two Polls; excess events are dropped.
func NewTerminal(screen tcell.Screen, queue int, log *zap.Logger) *Terminal {
	if queue <= 0 {
		queue = 64
	}
	return &Terminal{
		assets:  newAssets(),
		screen:  screen,
		log:     log,
		events:  make(chan tcell.Event, queue),
		ready:   make(chan struct{}),
		bg:      tcell.StyleDefault,
		pressed: make(map[Key]bool),
		held:    make(map[Key]int),
	}
}

func (t *Terminal) Open(title string, width, height int) error {
	if t.open {
		return nil
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	t.screen.EnableMouse()
	t.screen.HideCursor()
	t.screen.Clear()
	t.open = true
	close(t.ready)
	w, h := t.screen.Size()
	t.log.Info("terminal opened", zap.String("title", title), zap.Int("cols", w), zap.Int("rows", h))
	return nil
}

// Pump forwards screen events to the tick goroutine until the screen is
// closed or ctx is done. It waits for Open before reading.
func (t *Terminal) Pump(ctx context.Context) error {
	select {
	case <-t.ready:
	case <-ctx.Done():
		return nil
	}
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}
		select {
		case t.events <- ev:
		case <-ctx.Done():
			return nil
		default:
			t.dropped.Add(1)
		}
	}
}

func (t *Terminal) Poll() {
	clear(t.pressed)
	t.runes = t.runes[:0]
	t.dx, t.dy = 0, 0
	t.click = false
	for k, n := range t.held {
		if n <= 1 {
			delete(t.held, k)
		} else {
			t.held[k] = n - 1
		}
	}
	for {
		select {
		case ev := <-t.events:
			t.handle(ev)
		default:
			return
		}
	}
}

func (t *Terminal) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
	case *tcell.EventKey:
		k := keyOf(ev)
		if ev.Key() == tcell.KeyCtrlC {
			t.closeReq = true
			return
		}
		if ev.Key() == tcell.KeyRune {
			t.runes = append(t.runes, ev.Rune())
			if ev.Rune() >= 'A' && ev.Rune() <= 'Z' {
				t.press(KeyShift)
			}
		}
		if ev.Modifiers()&tcell.ModShift != 0 {
			t.press(KeyShift)
		}
		if k != KeyNone {
			t.press(k)
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		if t.captured {
			t.dx += float32(x - t.mx)
			t.dy += float32(y - t.my)
		}
		t.mx, t.my = x, y
		if ev.Buttons()&tcell.Button1 != 0 {
			t.click = true
		}
	}
}

func (t *Terminal) press(k Key) {
	t.pressed[k] = true
	t.held[k] = holdFrames
}

func keyOf(ev *tcell.EventKey) Key {
	switch ev.Key() {
	case tcell.KeyEscape:
		return KeyEscape
	case tcell.KeyEnter:
		return KeyEnter
	case tcell.KeyTab:
		return KeyTab
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return KeyBackspace
	case tcell.KeyUp:
		return KeyUp
	case tcell.KeyDown:
		return KeyDown
	case tcell.KeyLeft:
		return KeyLeft
	case tcell.KeyRight:
		return KeyRight
	case tcell.KeyRune:
		return RuneKey(ev.Rune())
	}
	return KeyNone
}

func (t *Terminal) KeyPressed(k Key) bool { return t.pressed[k] }

func (t *Terminal) KeyDown(k Key) bool { return t.held[k] > 0 }

func (t *Terminal) TypedRunes() []rune { return t.runes }

func (t *Terminal) MouseDelta() (float32, float32) { return t.dx, t.dy }

func (t *Terminal) MousePosition() (int, int) { return t.mx, t.my }

func (t *Terminal) MousePressed() bool { return t.click }

func (t *Terminal) CloseRequested() bool { return t.closeReq }

func (t *Terminal) CaptureCursor(on bool) { t.captured = on }

func (t *Terminal) CursorCaptured() bool { return t.captured }

// Dropped returns the number of events lost to a full queue.
func (t *Terminal) Dropped() uint64 { return t.dropped.Load() }

func style(c component.Color) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
}

func (t *Terminal) BeginFrame() { t.screen.Clear() }

func (t *Terminal) Clear(c component.Color) {
	t.bg = tcell.StyleDefault.Background(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
	t.screen.Fill(' ', t.bg)
}

func (t *Terminal) Begin3D(cam Camera) {
	t.camera = cam
	t.in3D = true
}

func (t *Terminal) End3D() { t.in3D = false }

func (t *Terminal) project(p mgl32.Vec3) (int, int, bool) {
	w, h := t.screen.Size()
	x, y, _, ok := t.camera.Project(p, w, h, float32(w)/float32(h*cellAspect))
	return x, y, ok
}

func (t *Terminal) DrawShape(id AssetID, world mgl32.Mat4, c component.Color) {
	if !t.in3D {
		return
	}
	s, ok := t.shape(id)
	if !ok {
		return
	}
	st := style(c)
	switch s.Kind {
	case component.Plane:
		// Outline the plane's extent on its local XZ axes.
		hx, hz := s.Size.X()/2, s.Size.Z()/2
		steps := int(math.Max(float64(s.Size.X()), float64(s.Size.Z())))
		for i := 0; i <= steps; i++ {
			f := float32(i)/float32(max(steps, 1))*2 - 1
			for _, local := range []mgl32.Vec3{{f * hx, 0, -hz}, {f * hx, 0, hz}, {-hx, 0, f * hz}, {hx, 0, f * hz}} {
				if x, y, ok := t.project(world.Mul4x1(local.Vec4(1)).Vec3()); ok {
					t.screen.SetContent(x, y, '░', nil, st)
				}
			}
		}
	default:
		x, y, ok := t.project(world.Col(3).Vec3())
		if !ok {
			return
		}
		t.putGlyph(x, y, glyphs[s.Kind], st)
	}
}

var glyphs = map[component.ShapeKind]string{
	component.Cube:   "■",
	component.Sphere: "●",
	component.Marker: "✚",
}

func (t *Terminal) DrawGrid(slices int, spacing float32) {
	if !t.in3D {
		return
	}
	st := tcell.StyleDefault.Foreground(tcell.ColorGray)
	half := slices / 2
	for i := -half; i <= half; i++ {
		for j := -half; j <= half; j++ {
			p := mgl32.Vec3{float32(i) * spacing, 0, float32(j) * spacing}
			if x, y, ok := t.project(p); ok {
				t.screen.SetContent(x, y, '·', nil, st)
			}
		}
	}
}

func (t *Terminal) DrawText(x, y int, s string, c component.Color) {
	st := style(c)
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, st)
		x += runewidth.RuneWidth(r)
	}
}

// putGlyph draws a glyph and pads the second cell of wide glyphs.
func (t *Terminal) putGlyph(x, y int, glyph string, st tcell.Style) {
	runes := []rune(glyph)
	if len(runes) == 0 {
		return
	}
	t.screen.SetContent(x, y, runes[0], runes[1:], st)
	if runewidth.StringWidth(glyph) == 2 {
		t.screen.SetContent(x+1, y, ' ', nil, st)
	}
}

func (t *Terminal) EndFrame() { t.screen.Show() }

func (t *Terminal) Size() (int, int) { return t.screen.Size() }

func (t *Terminal) Load(s component.Shape) (AssetID, error) {
	if !t.open {
		return 0, ErrNotOpen
	}
	return t.load(s), nil
}

func (t *Terminal) Unload(id AssetID) { t.unload(id) }

// Close finalizes the screen, which also ends Pump.
func (t *Terminal) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	t.screen.Fini()
	if n := t.dropped.Load(); n > 0 {
		t.log.Warn("input events dropped", zap.Uint64("count", n))
	}
	return nil
}
