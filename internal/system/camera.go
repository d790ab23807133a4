package system

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/render"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
)

const (
	// PlayerNode is the entity the player-mode keys move.
	PlayerNode = "PlayerNode"
	// CameraNode is the entity the player-mode camera follows.
	CameraNode = "Camera3DNode"

	followLerp  = 0.55
	pitchLimit  = math.Pi/2 - 0.1
	defaultSens = 0.003
	defaultMove = 5
)

var worldUp = mgl32.Vec3{0, 1, 0}

// CameraModule drives the RenderContext camera. Tab cycles free, player and
// debug modes. Any key or click captures the cursor for mouse look and Escape
// releases it. All keys are ignored while the console is open.
type CameraModule struct {
	hier  *transform.Hierarchy
	comps *component.Set

	host *module.Host
	cc   *CameraContext
	in   *PlayerInput
}

func NewCameraModule(hier *transform.Hierarchy, comps *component.Set) *CameraModule {
	return &CameraModule{hier: hier, comps: comps}
}

func (m *CameraModule) Name() string { return "camera" }

func (m *CameraModule) Init(h *module.Host) error {
	m.host = h
	w := h.World()
	m.cc = ecs.SetSingleton(w, CameraContext{Mode: CameraFree})
	yaw, pitch := lookAngles(render.DefaultCamera())
	m.in = ecs.SetSingleton(w, PlayerInput{
		Yaw:              yaw,
		Pitch:            pitch,
		MouseSensitivity: defaultSens,
		MoveSpeed:        defaultMove,
	})

	p := h.Phases()
	if err := h.AddSystem("Capture", p.Input, nil, coresys.SystemFunc(m.capture)); err != nil {
		return err
	}
	if err := h.AddSystem("Move", p.Logic, nil, coresys.SystemFunc(m.move)); err != nil {
		return err
	}
	if err := h.AddSystem("HUD", p.Render2D, nil, coresys.SystemFunc(m.hud)); err != nil {
		return err
	}
	return h.OnCleanup(func() {
		if rc, ok := ecs.Singleton[RenderContext](w); ok && rc.Ready {
			rc.Device.CaptureCursor(false)
		}
		m.in.Captured = false
		h.CleanupDone()
	})
}

// keyboard returns the device when camera input should be read this tick.
func (m *CameraModule) keyboard(w *ecs.World) (render.Device, *RenderContext, bool) {
	rc, ok := ecs.Singleton[RenderContext](w)
	if !ok || !rc.Ready {
		return nil, nil, false
	}
	if consoleOpen(ecs.Singleton[ConsoleContext](w)) {
		return nil, rc, false
	}
	return rc.Device, rc, true
}

func (m *CameraModule) capture(tc *coresys.TickContext) {
	dev, _, ok := m.keyboard(tc.World)
	if !ok {
		return
	}
	if dev.KeyPressed(render.KeyTab) {
		m.cc.Mode = (m.cc.Mode + 1) % cameraModes
		tc.Log.Info("camera mode", zap.Stringer("mode", m.cc.Mode))
		return
	}
	switch {
	case dev.KeyPressed(render.KeyEscape):
		dev.CaptureCursor(false)
	case len(dev.TypedRunes()) > 0 || dev.MousePressed():
		dev.CaptureCursor(true)
	}
	m.in.Captured = dev.CursorCaptured()
}

func (m *CameraModule) move(tc *coresys.TickContext) {
	dev, rc, ok := m.keyboard(tc.World)
	if rc == nil {
		return
	}
	switch m.cc.Mode {
	case CameraDebug:
		rc.Camera = render.DefaultCamera()
	case CameraFree:
		if ok {
			m.look(dev)
			m.fly(dev, rc, tc.Seconds())
		}
		rc.Camera.Target = rc.Camera.Position.Add(m.forward())
	case CameraPlayer:
		if ok {
			m.look(dev)
			m.walk(tc, dev)
		}
		m.follow(rc)
	}
	rc.CameraValid = true
}

func (m *CameraModule) look(dev render.Device) {
	if !dev.CursorCaptured() {
		return
	}
	dx, dy := dev.MouseDelta()
	m.in.Yaw -= dx * m.in.MouseSensitivity
	m.in.Pitch -= dy * m.in.MouseSensitivity
	m.in.Pitch = mgl32.Clamp(m.in.Pitch, -pitchLimit, pitchLimit)
}

func (m *CameraModule) forward() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(m.in.Yaw))
	sp, cp := math.Sincos(float64(m.in.Pitch))
	return mgl32.Vec3{float32(cp * sy), float32(sp), float32(cp * cy)}
}

// axes sums the WASD keys along fwd and right.
func axes(dev render.Device, fwd, right mgl32.Vec3) mgl32.Vec3 {
	var d mgl32.Vec3
	if dev.KeyDown('w') {
		d = d.Add(fwd)
	}
	if dev.KeyDown('s') {
		d = d.Sub(fwd)
	}
	if dev.KeyDown('d') {
		d = d.Add(right)
	}
	if dev.KeyDown('a') {
		d = d.Sub(right)
	}
	return d
}

func (m *CameraModule) fly(dev render.Device, rc *RenderContext, dt float32) {
	fwd := m.forward()
	right := fwd.Cross(worldUp).Normalize()
	d := axes(dev, fwd, right)
	if dev.KeyDown(render.KeySpace) {
		d = d.Add(worldUp)
	}
	if dev.KeyDown(render.KeyShift) {
		d = d.Sub(worldUp)
	}
	rc.Camera.Position = rc.Camera.Position.Add(d.Mul(m.in.MoveSpeed * dt))
}

// walk moves the player node on the ground plane. R puts it back at the
// origin.
func (m *CameraModule) walk(tc *coresys.TickContext, dev render.Device) {
	player, ok := m.comps.Lookup(tc.World, PlayerNode)
	if !ok {
		return
	}
	if dev.KeyPressed('r') {
		m.hier.SetPosition(player, mgl32.Vec3{})
		return
	}
	sy, cy := math.Sincos(float64(m.in.Yaw))
	fwd := mgl32.Vec3{float32(sy), 0, float32(cy)}
	right := fwd.Cross(worldUp)
	if d := axes(dev, fwd, right); d.Len() > 0 {
		m.hier.Translate(player, d.Normalize().Mul(m.in.MoveSpeed*tc.Seconds()))
	}
}

// follow eases the camera toward the camera node and looks along the view
// direction.
func (m *CameraModule) follow(rc *RenderContext) {
	if node, ok := m.comps.Lookup(m.host.World(), CameraNode); ok {
		if p, ok := m.hier.WorldPosition(node); ok {
			cur := rc.Camera.Position
			rc.Camera.Position = cur.Add(p.Sub(cur).Mul(followLerp))
		}
	}
	rc.Camera.Target = rc.Camera.Position.Add(m.forward())
}

func (m *CameraModule) hud(tc *coresys.TickContext) {
	rc, ok := ecs.Singleton[RenderContext](tc.World)
	if !ok || !rc.Ready {
		return
	}
	rc.Device.DrawText(0, 1, "[Tab] Camera Mode: "+m.cc.Mode.String(), component.Gray)
}

// lookAngles returns the yaw and pitch of the camera's view direction.
func lookAngles(c render.Camera) (yaw, pitch float32) {
	d := c.Target.Sub(c.Position)
	if d.Len() == 0 {
		return 0, 0
	}
	d = d.Normalize()
	pitch = float32(math.Asin(float64(d.Y())))
	yaw = float32(math.Atan2(float64(d.X()), float64(d.Z())))
	return yaw, pitch
}
