package system

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/module"
)

func TestRenderDrawsShapesAtWorldPosition(t *testing.T) {
	r := newRig(t)
	r.register(t, NewRenderModule(r.dev, r.hier, r.comps, r.window()), NewTransformModule(r.hier))

	parent := r.spawn("Parent", mgl32.Vec3{1, 0, 0})
	child := r.spawn("Child", mgl32.Vec3{0, 2, 3})
	r.hier.Attach(child, parent)
	ecs.Set(r.w, child, r.comps.Shape, component.Shape{Kind: component.Sphere, Color: component.Red})

	r.tick(t, 1)
	assert.Equal(t, []string{
		"Open test 80x24",
		"BeginFrame",
		"Clear 245,245,245",
		"Begin3D",
		"Load sphere 1",
		"DrawShape sphere 1.00,2.00,3.00",
		"DrawGrid 10 1.00",
		"End3D",
		"Text 0,0 60 FPS  4 entities",
		"EndFrame",
	}, r.dev.Calls)

	r.dev.ResetCalls()
	r.tick(t, 1)
	assert.NotContains(t, r.dev.Calls, "Load sphere 2", "assets load once")
	assert.Equal(t, 1, r.dev.Loaded())
	assert.Equal(t, 2, r.dev.Frames)
}

func TestRenderCloseRequestRunsShutdown(t *testing.T) {
	r := newRig(t)
	r.register(t, NewRenderModule(r.dev, r.hier, r.comps, r.window()), NewTransformModule(r.hier))
	e := r.spawn("Cube", mgl32.Vec3{})
	ecs.Set(r.w, e, r.comps.Shape, component.Shape{Kind: component.Cube})

	r.tick(t, 1)
	require.Equal(t, 1, r.dev.Loaded())
	r.dev.RequestClose()
	r.tick(t, 1)

	assert.True(t, r.mgr.ShouldQuit())
	assert.Equal(t, module.Closed, r.mgr.Stage())
	assert.False(t, r.dev.IsOpen())
	assert.Equal(t, 0, r.dev.Loaded())
	s, _ := ecs.Get(r.w, e, r.comps.Shape)
	assert.Zero(t, s.Asset)
	assert.Equal(t, []string{"Unload 1", "Close"}, r.dev.Calls[len(r.dev.Calls)-2:])
	assert.False(t, r.renderContext(t).Ready)
}

func TestRenderSkipsWorkBeforeSetup(t *testing.T) {
	r := newRig(t)
	m := NewRenderModule(r.dev, r.hier, r.comps, r.window())
	r.register(t, m)
	rc := r.renderContext(t)
	assert.False(t, rc.Ready)

	// Systems guard on Ready, so calling one directly is a no-op.
	m.beginFrame(nil)
	assert.Empty(t, r.dev.Calls)
}
