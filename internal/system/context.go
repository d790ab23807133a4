package system

import (
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/render"
)

// RenderContext is the render module's singleton. Systems that draw must
// check Ready; it is false before SetupGraphics and after CleanupGraphics.
type RenderContext struct {
	Device      render.Device
	Camera      render.Camera
	CameraValid bool
	Ready       bool
	Background  component.Color
}

// CameraMode selects how the camera module drives the camera.
type CameraMode uint8

const (
	CameraFree CameraMode = iota
	CameraPlayer
	CameraDebug
	cameraModes
)

func (m CameraMode) String() string {
	switch m {
	case CameraFree:
		return "FREE"
	case CameraPlayer:
		return "PLAYER"
	case CameraDebug:
		return "DEBUG"
	}
	return "UNKNOWN"
}

// CameraContext is the camera module's singleton.
type CameraContext struct {
	Mode CameraMode
}

// PlayerInput holds mouse-look and movement state.
type PlayerInput struct {
	Yaw, Pitch       float32
	MouseSensitivity float32
	MoveSpeed        float32
	Captured         bool
}

// ConsoleContext is the console module's singleton. An open console owns
// the keyboard.
type ConsoleContext struct {
	Loaded bool
	Open   bool
}

// consoleOpen reports whether keyboard input belongs to the console.
func consoleOpen(cc *ConsoleContext, ok bool) bool {
	return ok && cc.Loaded && cc.Open
}
