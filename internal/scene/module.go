package scene

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/config"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
)

// Saver stores an encoded scene snapshot.
type Saver interface {
	SaveSnapshot(ctx context.Context, name string, data []byte) (uuid.UUID, error)
}

const saveTimeout = 5 * time.Second

// Module spawns the configured scene in SetupWorld and snapshots the world
// when the engine closes.
type Module struct {
	cfg   config.SceneConfig
	hier  *transform.Hierarchy
	comps *component.Set
	saver Saver
	host  *module.Host

	// Spawned is the number of entities created from the scene file.
	Spawned int
}

func NewModule(cfg config.SceneConfig, hier *transform.Hierarchy, comps *component.Set) *Module {
	return &Module{cfg: cfg, hier: hier, comps: comps}
}

// SetSaver adds a snapshot store used on close besides SnapshotPath.
func (m *Module) SetSaver(s Saver) { m.saver = s }

func (m *Module) Name() string { return "scene" }

func (m *Module) Init(h *module.Host) error {
	m.host = h
	if err := h.AddSystem("Spawn", h.Phases().SetupWorld, nil, coresys.SystemFunc(m.spawn)); err != nil {
		return err
	}
	if err := h.Observe("Snapshot", event.Filter{}, func(event.Event) { m.snapshot() }, module.Close); err != nil {
		return err
	}
	return h.OnCleanup(h.CleanupDone)
}

func (m *Module) spawn(tc *coresys.TickContext) {
	if m.cfg.Path == "" {
		return
	}
	doc, err := Load(m.cfg.Path)
	if err != nil {
		tc.Log.Error("load scene", zap.Error(err))
		return
	}
	ids, err := Spawn(doc, m.hier, m.comps)
	if err != nil {
		tc.Log.Error("spawn scene", zap.Error(err))
		return
	}
	m.Spawned = len(ids)
	tc.Log.Info("scene spawned", zap.String("scene", doc.Name), zap.Int("entities", len(ids)))
}

func (m *Module) snapshot() {
	if m.cfg.SnapshotPath == "" && m.saver == nil {
		return
	}
	log := m.host.Log
	doc := Capture(m.docName(), m.hier, m.comps)
	if m.cfg.SnapshotPath != "" {
		if err := Save(m.cfg.SnapshotPath, doc); err != nil {
			log.Error("save snapshot", zap.Error(err))
		} else {
			log.Info("snapshot written", zap.String("path", m.cfg.SnapshotPath), zap.Int("entities", len(doc.Entities)))
		}
	}
	if m.saver == nil {
		return
	}
	raw, err := doc.Marshal()
	if err != nil {
		log.Error("encode snapshot", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	id, err := m.saver.SaveSnapshot(ctx, doc.Name, raw)
	if err != nil {
		log.Error("store snapshot", zap.Error(err))
		return
	}
	log.Info("snapshot stored", zap.Stringer("id", id))
}

func (m *Module) docName() string {
	if m.cfg.Path == "" {
		return "world"
	}
	base := filepath.Base(m.cfg.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
