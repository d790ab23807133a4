package system

import (
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"go.uber.org/zap"
)

// ButtonClicked is emitted at a button entity when it is clicked. The
// payload is the button label.
const ButtonClicked event.Kind = "gui.ButtonClicked"

// GUIModule draws Button entities in Render2D and turns clicks into
// ButtonClicked events. It owns a "Show Message" button of its own and
// echoes its clicks to the log.
type GUIModule struct {
	comps *component.Set

	host   *module.Host
	Clicks int
}

func NewGUIModule(comps *component.Set) *GUIModule {
	return &GUIModule{comps: comps}
}

func (m *GUIModule) Name() string { return "gui" }

func (m *GUIModule) Init(h *module.Host) error {
	m.host = h
	w := h.World()

	btn := w.CreateEntity()
	ecs.Set(w, btn, m.comps.Name, component.Name{Value: "ShowMessage"})
	ecs.Set(w, btn, m.comps.Button, component.Button{Label: "Show Message", X: 2, Y: 3, W: 16, H: 1})
	h.Own(btn)

	q := &ecs.QueryDesc{Terms: []ecs.Term{{Component: m.comps.Button.ID()}}}
	if err := h.AddSystem("Buttons", h.Phases().Render2D, q, coresys.SystemFunc(m.buttons)); err != nil {
		return err
	}
	if err := h.Observe("clicked", h.Owned(), func(ev event.Event) {
		m.Clicks++
		label, _ := event.Payload[string](ev)
		h.Log.Info("button clicked", zap.String("label", label), zap.Int("clicks", m.Clicks))
	}, ButtonClicked); err != nil {
		return err
	}
	return h.OnCleanup(h.CleanupDone)
}

func (m *GUIModule) buttons(tc *coresys.TickContext) {
	rc, ok := ecs.Singleton[RenderContext](tc.World)
	if !ok || !rc.Ready {
		return
	}
	dev := rc.Device
	mx, my := dev.MousePosition()
	click := dev.MousePressed()
	for b := range tc.Query.Iter() {
		bs := ecs.Field(b, m.comps.Button)
		for i, e := range b.Entities() {
			btn := &bs[i]
			btn.Hovered = btn.Contains(mx, my)
			btn.Down = btn.Hovered && click
			col := component.Gray
			if btn.Hovered {
				col = component.Blue
			}
			dev.DrawText(btn.X, btn.Y, "[ "+btn.Label+" ]", col)
			if btn.Down {
				tc.Bus.Emit(ButtonClicked, e, btn.Label)
			}
		}
	}
}
