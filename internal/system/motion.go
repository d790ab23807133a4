package system

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
)

var easings = map[string]ease.TweenFunc{
	"":           ease.Linear,
	"linear":     ease.Linear,
	"inOutQuad":  ease.InOutQuad,
	"inOutSine":  ease.InOutSine,
	"outBounce":  ease.OutBounce,
	"outElastic": ease.OutElastic,
}

// MotionModule moves transforms by their Velocity and plays Tween
// animations. Register it before the transform module so moves made this
// tick are propagated this tick.
type MotionModule struct {
	hier  *transform.Hierarchy
	comps *component.Set

	tweens map[ecs.EntityID]*gween.Tween
}

func NewMotionModule(hier *transform.Hierarchy, comps *component.Set) *MotionModule {
	return &MotionModule{hier: hier, comps: comps, tweens: make(map[ecs.EntityID]*gween.Tween)}
}

func (m *MotionModule) Name() string { return "motion" }

func (m *MotionModule) Init(h *module.Host) error {
	tid := m.hier.C.ID()
	p := h.Phases()
	moving := &ecs.QueryDesc{Terms: []ecs.Term{{Component: tid}, {Component: m.comps.Velocity.ID()}}}
	if err := h.AddSystem("Move", p.Logic, moving, coresys.SystemFunc(m.move)); err != nil {
		return err
	}
	tweened := &ecs.QueryDesc{Terms: []ecs.Term{{Component: tid}, {Component: m.comps.Tween.ID()}}}
	if err := h.AddSystem("Tween", p.Logic, tweened, coresys.SystemFunc(m.tween)); err != nil {
		return err
	}
	return h.OnCleanup(func() {
		clear(m.tweens)
		h.CleanupDone()
	})
}

func (m *MotionModule) move(tc *coresys.TickContext) {
	dt := tc.Seconds()
	for b := range tc.Query.Iter() {
		ts := ecs.Field(b, m.hier.C)
		vs := ecs.Field(b, m.comps.Velocity)
		for i, e := range b.Entities() {
			if v := vs[i].Linear; v != (mgl32.Vec3{}) {
				ts[i].Position = ts[i].Position.Add(v.Mul(dt))
				m.hier.MarkDirty(e)
			}
		}
	}
}

func (m *MotionModule) tween(tc *coresys.TickContext) {
	dt := tc.Seconds()
	for e := range m.tweens {
		if !tc.World.Has(e, m.comps.Tween.ID()) {
			delete(m.tweens, e)
		}
	}
	for b := range tc.Query.Iter() {
		ts := ecs.Field(b, m.hier.C)
		tws := ecs.Field(b, m.comps.Tween)
		for i, e := range b.Entities() {
			spec := &tws[i]
			if spec.Axis < 0 || spec.Axis > 2 || spec.Duration <= 0 {
				continue
			}
			tw, ok := m.tweens[e]
			if !ok {
				fn, known := easings[spec.Ease]
				if !known {
					tc.Log.Warn("unknown easing, using linear", zap.String("ease", spec.Ease))
					fn = ease.Linear
				}
				tw = gween.New(spec.From, spec.To, spec.Duration, fn)
				m.tweens[e] = tw
			}
			v, done := tw.Update(dt)
			ts[i].Position[spec.Axis] = v
			m.hier.MarkDirty(e)
			if done && spec.Yoyo {
				spec.From, spec.To = spec.To, spec.From
				delete(m.tweens, e)
			}
		}
	}
}
