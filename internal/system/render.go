package system

import (
	"fmt"

	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/config"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/render"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
)

// RenderModule owns the device. It opens it on SetupGraphics, polls input at
// the top of every tick, draws every Shape from its world matrix and releases
// the device on CleanupGraphics.
type RenderModule struct {
	dev   render.Device
	hier  *transform.Hierarchy
	comps *component.Set
	win   config.WindowConfig

	host *module.Host
	rc   *RenderContext
	log  *zap.Logger
}

func NewRenderModule(dev render.Device, hier *transform.Hierarchy, comps *component.Set, win config.WindowConfig) *RenderModule {
	return &RenderModule{dev: dev, hier: hier, comps: comps, win: win}
}

func (m *RenderModule) Name() string { return "render" }

func (m *RenderModule) Init(h *module.Host) error {
	m.host = h
	m.log = h.Log
	m.rc = ecs.SetSingleton(h.World(), RenderContext{
		Device:      m.dev,
		Camera:      render.DefaultCamera(),
		CameraValid: true,
		Background:  component.White,
	})

	p := h.Phases()
	shapes := &ecs.QueryDesc{Terms: []ecs.Term{
		{Component: m.hier.C.ID()},
		{Component: m.comps.Shape.ID()},
	}}
	systems := []struct {
		name  string
		phase coresys.Phase
		q     *ecs.QueryDesc
		fn    coresys.SystemFunc
	}{
		{"Setup", p.SetupGraphics, nil, m.setup},
		{"Poll", p.Input, nil, m.poll},
		{"BeginFrame", p.BeginRender, nil, m.beginFrame},
		{"BeginCamera", p.BeginCamera, nil, m.beginCamera},
		{"DrawShapes", p.UpdateCamera, shapes, m.drawShapes},
		{"EndCamera", p.EndCamera, nil, m.endCamera},
		{"Stats", p.Render2D, nil, m.stats},
		{"EndFrame", p.EndRender, nil, m.endFrame},
	}
	for _, s := range systems {
		if err := h.AddSystem(s.name, s.phase, s.q, s.fn); err != nil {
			return fmt.Errorf("render system %s: %w", s.name, err)
		}
	}

	if err := h.OnCleanup(h.CleanupDone); err != nil {
		return err
	}
	return h.Observe("graphics", event.Filter{}, func(event.Event) { m.release() }, module.CleanupGraphics)
}

func (m *RenderModule) setup(tc *coresys.TickContext) {
	if m.rc.Ready {
		return
	}
	if err := m.dev.Open(m.win.Title, m.win.Width, m.win.Height); err != nil {
		m.log.Error("open device", zap.Error(err))
		m.host.RequestShutdown()
		return
	}
	m.rc.Ready = true
	w, h := m.dev.Size()
	m.log.Info("device ready", zap.Int("width", w), zap.Int("height", h))
}

func (m *RenderModule) poll(tc *coresys.TickContext) {
	if !m.rc.Ready {
		return
	}
	m.dev.Poll()
	if m.dev.CloseRequested() {
		m.host.RequestShutdown()
	}
}

func (m *RenderModule) beginFrame(tc *coresys.TickContext) {
	if !m.rc.Ready {
		return
	}
	m.dev.BeginFrame()
	m.dev.Clear(m.rc.Background)
}

func (m *RenderModule) beginCamera(tc *coresys.TickContext) {
	if !m.rc.Ready || !m.rc.CameraValid {
		return
	}
	m.dev.Begin3D(m.rc.Camera)
}

// drawShapes loads drawables on first sight and draws each one at its world
// matrix.
func (m *RenderModule) drawShapes(tc *coresys.TickContext) {
	if !m.rc.Ready || !m.rc.CameraValid {
		return
	}
	for b := range tc.Query.Iter() {
		ts := ecs.Field(b, m.hier.C)
		ss := ecs.Field(b, m.comps.Shape)
		for i := range ss {
			s := &ss[i]
			if s.Asset == 0 {
				id, err := m.dev.Load(*s)
				if err != nil {
					tc.Log.Warn("load shape", zap.Stringer("kind", s.Kind), zap.Error(err))
					continue
				}
				s.Asset = uint32(id)
			}
			m.dev.DrawShape(render.AssetID(s.Asset), ts[i].World, s.Color)
		}
	}
	m.dev.DrawGrid(10, 1)
}

func (m *RenderModule) endCamera(tc *coresys.TickContext) {
	if !m.rc.Ready || !m.rc.CameraValid {
		return
	}
	m.dev.End3D()
}

func (m *RenderModule) stats(tc *coresys.TickContext) {
	if !m.rc.Ready {
		return
	}
	fps := 0
	if tc.Delta > 0 {
		fps = int(1/tc.Delta.Seconds() + 0.5)
	}
	m.dev.DrawText(0, 0, fmt.Sprintf("%d FPS  %d entities", fps, tc.World.Count()), component.Green)
}

func (m *RenderModule) endFrame(tc *coresys.TickContext) {
	if !m.rc.Ready {
		return
	}
	m.dev.EndFrame()
}

// release unloads every loaded drawable and closes the device.
func (m *RenderModule) release() {
	if !m.rc.Ready {
		return
	}
	w := m.host.World()
	q := w.MustQuery(ecs.QueryDesc{Terms: []ecs.Term{{Component: m.comps.Shape.ID()}}})
	n := 0
	ecs.Each1(q, m.comps.Shape, func(_ ecs.EntityID, s *component.Shape) {
		if s.Asset != 0 {
			m.dev.Unload(render.AssetID(s.Asset))
			s.Asset = 0
			n++
		}
	})
	m.rc.Ready = false
	if err := m.dev.Close(); err != nil {
		m.log.Warn("close device", zap.Error(err))
	}
	m.log.Info("device closed", zap.Int("unloaded", n))
}
