package system

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

const frame = time.Second / 60

// rig is a world with the standard pipeline and a headless device.
type rig struct {
	w     *ecs.World
	bus   *event.Bus
	sched *coresys.Scheduler
	mgr   *module.Manager
	hier  *transform.Hierarchy
	comps *component.Set
	dev   *render.Headless
}

func newRig(t *testing.T) *rig {
	t.Helper()
	w := ecs.NewWorld()
	bus := event.NewBus(w, zap.NewNop())
	sched := coresys.NewScheduler(w, bus, zap.NewNop())
	pipe, err := coresys.NewPipeline(sched)
	require.NoError(t, err)
	mgr, err := module.NewManager(sched, pipe, zap.NewNop())
	require.NoError(t, err)
	return &rig{
		w:     w,
		bus:   bus,
		sched: sched,
		mgr:   mgr,
		hier:  transform.NewHierarchy(w),
		comps: component.Register(w),
		dev:   render.NewHeadless(80, 24),
	}
}

func (r *rig) window() config.WindowConfig {
	return config.WindowConfig{Width: 80, Height: 24, Title: "test"}
}

func (r *rig) register(t *testing.T, mods ...module.Module) {
	t.Helper()
	for _, m := range mods {
		require.NoError(t, r.mgr.Register(m))
	}
}

func (r *rig) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.sched.Tick(frame))
	}
}

// spawn creates a named entity with a transform at pos.
func (r *rig) spawn(name string, pos mgl32.Vec3) ecs.EntityID {
	e := r.w.CreateEntity()
	ecs.Set(r.w, e, r.comps.Name, component.Name{Value: name})
	r.hier.Put(e, transform.New(pos))
	return e
}

func (r *rig) renderContext(t *testing.T) *RenderContext {
	t.Helper()
	rc, ok := ecs.Singleton[RenderContext](r.w)
	require.True(t, ok)
	return rc
}

func assertVec(t *testing.T, want, got mgl32.Vec3, msgAndArgs ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3, msgAndArgs...)
	}
}
