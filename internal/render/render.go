// Package render defines the render and input capabilities systems draw
// and read through, with a recording headless backend and a tcell terminal
// backend.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/component"
)

var (
	ErrDoubleUnload = errors.New("render: asset unloaded twice")
	ErrUnknownAsset = errors.New("render: unknown asset")
	ErrNotOpen      = errors.New("render: device not open")
)

// AssetID names a loaded drawable. Zero is never assigned.
type AssetID uint32

// Renderer is the drawing half of a device. Calls are only valid from the
// tick goroutine.
type Renderer interface {
	Open(title string, width, height int) error
	BeginFrame()
	Clear(c component.Color)
	Begin3D(cam Camera)
	DrawShape(id AssetID, world mgl32.Mat4, c component.Color)
	DrawGrid(slices int, spacing float32)
	End3D()
	DrawText(x, y int, s string, c component.Color)
	EndFrame()
	Size() (width, height int)
	Load(s component.Shape) (AssetID, error)
	Unload(id AssetID)
	Loaded() int
	Close() error
}

// Input is the polling half of a device. Poll latches the events that
// arrived since the previous Poll; the query methods read that latch.
type Input interface {
	Poll()
	KeyPressed(k Key) bool
	KeyDown(k Key) bool
	TypedRunes() []rune
	MouseDelta() (dx, dy float32)
	MousePosition() (x, y int)
	MousePressed() bool
	CloseRequested() bool
	CaptureCursor(on bool)
	CursorCaptured() bool
}

// Device is a window or screen with both capabilities.
type Device interface {
	Renderer
	Input
}

// Key is a printable key's lower-case rune or one of the named keys below.
type Key int32

const (
	KeyNone Key = 0

	KeyEscape Key = -1 - iota
	KeyEnter
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyShift
)

const KeySpace Key = ' '

var keyNames = map[Key]string{
	KeyEscape:    "escape",
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyBackspace: "backspace",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyShift:     "shift",
	KeySpace:     "space",
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	if k > 0 {
		return string(rune(k))
	}
	return fmt.Sprintf("key(%d)", int32(k))
}

// ParseKey resolves a key name ("tab", "escape", ...) or a single character.
func ParseKey(s string) (Key, error) {
	ls := strings.ToLower(s)
	for k, n := range keyNames {
		if n == ls {
			return k, nil
		}
	}
	if r := []rune(s); len(r) == 1 {
		return RuneKey(r[0]), nil
	}
	return KeyNone, fmt.Errorf("render: unknown key %q", s)
}

// RuneKey maps a typed rune to its key.
func RuneKey(r rune) Key {
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	return Key(r)
}

// assets tracks loaded drawables for both backends.
type assets struct {
	next  AssetID
	live  map[AssetID]component.Shape
	freed map[AssetID]bool
}

func newAssets() assets {
	return assets{
		live:  make(map[AssetID]component.Shape),
		freed: make(map[AssetID]bool),
	}
}

func (a *assets) load(s component.Shape) AssetID {
	a.next++
	a.live[a.next] = s
	return a.next
}

func (a *assets) unload(id AssetID) {
	if a.freed[id] {
		panic(fmt.Errorf("%w: %d", ErrDoubleUnload, id))
	}
	if _, ok := a.live[id]; !ok {
		panic(fmt.Errorf("%w: %d", ErrUnknownAsset, id))
	}
	delete(a.live, id)
	a.freed[id] = true
}

func (a *assets) shape(id AssetID) (component.Shape, bool) {
	s, ok := a.live[id]
	return s, ok
}

func (a *assets) Loaded() int { return len(a.live) }
