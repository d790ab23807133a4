package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/component"
)

// Headless is a Device that draws nothing. It records every render call and
// replays scripted input, for tests and for running without a terminal.
type Headless struct {
	assets

	width, height int
	open          bool
	in3D          bool
	camera        Camera

	// Calls is the render call log, one line per call.
	Calls  []string
	Frames int

	queued   []func()
	pressed  map[Key]bool
	held     map[Key]bool
	runes    []rune
	dx, dy   float32
	mx, my   int
	click    bool
	closeReq bool
	captured bool
}

func NewHeadless(width, height int) *Headless {
	return &Headless{
		assets:  newAssets(),
		width:   width,
		height:  height,
		pressed: make(map[Key]bool),
		held:    make(map[Key]bool),
	}
}

func (h *Headless) record(format string, args ...any) {
	h.Calls = append(h.Calls, fmt.Sprintf(format, args...))
}

func (h *Headless) Open(title string, width, height int) error {
	if width > 0 && height > 0 {
		h.width, h.height = width, height
	}
	h.open = true
	h.record("Open %s %dx%d", title, h.width, h.height)
	return nil
}

func (h *Headless) IsOpen() bool { return h.open }

func (h *Headless) BeginFrame() { h.record("BeginFrame") }

func (h *Headless) Clear(c component.Color) { h.record("Clear %d,%d,%d", c.R, c.G, c.B) }

func (h *Headless) Begin3D(cam Camera) {
	h.in3D = true
	h.camera = cam
	h.record("Begin3D")
}

// Camera returns the camera of the last Begin3D.
func (h *Headless) Camera() Camera { return h.camera }

func (h *Headless) DrawShape(id AssetID, world mgl32.Mat4, c component.Color) {
	s, ok := h.shape(id)
	if !ok {
		h.record("DrawShape %d missing", id)
		return
	}
	p := world.Col(3)
	h.record("DrawShape %s %.2f,%.2f,%.2f", s.Kind, p.X(), p.Y(), p.Z())
}

func (h *Headless) DrawGrid(slices int, spacing float32) {
	h.record("DrawGrid %d %.2f", slices, spacing)
}

func (h *Headless) End3D() {
	h.in3D = false
	h.record("End3D")
}

func (h *Headless) DrawText(x, y int, s string, c component.Color) {
	h.record("Text %d,%d %s", x, y, s)
}

func (h *Headless) EndFrame() {
	h.Frames++
	h.record("EndFrame")
}

func (h *Headless) Size() (int, int) { return h.width, h.height }

func (h *Headless) Load(s component.Shape) (AssetID, error) {
	if !h.open {
		return 0, ErrNotOpen
	}
	id := h.load(s)
	h.record("Load %s %d", s.Kind, id)
	return id, nil
}

func (h *Headless) Unload(id AssetID) {
	h.unload(id)
	h.record("Unload %d", id)
}

func (h *Headless) Close() error {
	h.open = false
	h.record("Close")
	return nil
}

// ResetCalls clears the call log.
func (h *Headless) ResetCalls() { h.Calls = h.Calls[:0] }

// Scripted input. Each call takes effect at the next Poll.

// Press taps k for one frame.
func (h *Headless) Press(k Key) {
	h.queued = append(h.queued, func() { h.pressed[k] = true })
}

// Hold keeps k down until Release.
func (h *Headless) Hold(k Key) {
	h.queued = append(h.queued, func() {
		h.pressed[k] = true
		h.held[k] = true
	})
}

func (h *Headless) Release(k Key) {
	h.queued = append(h.queued, func() { delete(h.held, k) })
}

// Type enters s as typed runes.
func (h *Headless) Type(s string) {
	h.queued = append(h.queued, func() {
		for _, r := range s {
			h.runes = append(h.runes, r)
			h.pressed[RuneKey(r)] = true
		}
	})
}

func (h *Headless) MoveMouse(dx, dy float32) {
	h.queued = append(h.queued, func() {
		h.dx += dx
		h.dy += dy
		h.mx += int(dx)
		h.my += int(dy)
	})
}

// Click presses the mouse button at cell (x, y).
func (h *Headless) Click(x, y int) {
	h.queued = append(h.queued, func() {
		h.mx, h.my = x, y
		h.click = true
	})
}

func (h *Headless) RequestClose() {
	h.queued = append(h.queued, func() { h.closeReq = true })
}

func (h *Headless) Poll() {
	clear(h.pressed)
	h.runes = h.runes[:0]
	h.dx, h.dy = 0, 0
	h.click = false
	for _, fn := range h.queued {
		fn()
	}
	h.queued = h.queued[:0]
}

func (h *Headless) KeyPressed(k Key) bool { return h.pressed[k] }

func (h *Headless) KeyDown(k Key) bool { return h.held[k] || h.pressed[k] }

func (h *Headless) TypedRunes() []rune { return h.runes }

func (h *Headless) MouseDelta() (float32, float32) { return h.dx, h.dy }

func (h *Headless) MousePosition() (int, int) { return h.mx, h.my }

func (h *Headless) MousePressed() bool { return h.click }

func (h *Headless) CloseRequested() bool { return h.closeReq }

func (h *Headless) CaptureCursor(on bool) { h.captured = on }

func (h *Headless) CursorCaptured() bool { return h.captured }
