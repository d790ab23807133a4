package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/config"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/render"
	"github.com/tickworld/engine/internal/system"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
)

func newEngine(t *testing.T) (*coresys.Scheduler, *module.Manager, *render.Headless) {
	t.Helper()
	w := ecs.NewWorld()
	bus := event.NewBus(w, zap.NewNop())
	sched := coresys.NewScheduler(w, bus, zap.NewNop())
	pipe, err := coresys.NewPipeline(sched)
	require.NoError(t, err)
	mgr, err := module.NewManager(sched, pipe, zap.NewNop())
	require.NoError(t, err)
	hier := transform.NewHierarchy(w)
	comps := component.Register(w)
	dev := render.NewHeadless(40, 12)
	win := config.WindowConfig{Width: 40, Height: 12, Title: "loop"}
	require.NoError(t, mgr.Register(system.NewRenderModule(dev, hier, comps, win)))
	require.NoError(t, mgr.Register(system.NewTransformModule(hier)))
	return sched, mgr, dev
}

func TestLoopStopsAfterMaxTicks(t *testing.T) {
	sched, mgr, dev := newEngine(t)
	cfg := config.EngineConfig{TickRate: time.Millisecond, MaxTicks: 3}
	require.NoError(t, loop(context.Background(), sched, mgr, cfg, zap.NewNop()))
	assert.True(t, mgr.ShouldQuit())
	assert.Equal(t, uint64(4), sched.Stats().Ticks, "one more tick runs the cleanup gate")
	assert.False(t, dev.IsOpen())
}

func TestLoopShutsDownOnCancel(t *testing.T) {
	sched, mgr, dev := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.EngineConfig{TickRate: time.Millisecond}
	require.NoError(t, loop(ctx, sched, mgr, cfg, zap.NewNop()))
	assert.True(t, mgr.ShouldQuit())
	assert.False(t, dev.IsOpen())
}

func TestNewLoggerTeesIntoScrollback(t *testing.T) {
	sb := system.NewScrollback(8)
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "console"}, sb, true)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.Equal(t, 1, sb.Len())
	assert.Contains(t, sb.Lines()[0], "shown")
}
