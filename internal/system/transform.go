package system

import (
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/transform"
)

// TransformModule runs the hierarchy propagator in the Logic phase. Modules
// registered before it see their Logic moves propagated on the same tick.
type TransformModule struct {
	hier *transform.Hierarchy
}

func NewTransformModule(hier *transform.Hierarchy) *TransformModule {
	return &TransformModule{hier: hier}
}

func (m *TransformModule) Name() string { return "transform" }

func (m *TransformModule) Init(h *module.Host) error {
	if err := h.AddSystem("Propagate", h.Phases().Logic, nil, m.hier); err != nil {
		return err
	}
	return h.OnCleanup(h.CleanupDone)
}
