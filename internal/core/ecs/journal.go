package ecs

// changeLog records entity ids once each, in the order first seen.
type changeLog struct {
	seen map[EntityID]struct{}
	ids  []EntityID
}

func newChangeLog() *changeLog {
	return &changeLog{seen: make(map[EntityID]struct{}, 16)}
}

func (l *changeLog) add(e EntityID) {
	if _, ok := l.seen[e]; ok {
		return
	}
	l.seen[e] = struct{}{}
	l.ids = append(l.ids, e)
}

func (l *changeLog) take() []EntityID {
	out := l.ids
	l.ids = nil
	clear(l.seen)
	return out
}

// WatchRelation starts recording every entity whose kind-parent changes:
// AddRelation, RemoveRelation, and destroying either end of an edge. Each
// watch has one consumer; RelationChanges hands the ids over and resets.
func (w *World) WatchRelation(kind RelationKind) {
	if _, ok := w.relLogs[kind]; !ok {
		w.relLogs[kind] = newChangeLog()
	}
}

// RelationChanges returns and clears the ids recorded for kind since the
// previous call. Ids may be stale by now.
func (w *World) RelationChanges(kind RelationKind) []EntityID {
	l, ok := w.relLogs[kind]
	if !ok {
		return nil
	}
	return l.take()
}

// WatchComponent starts recording every entity that gains or loses component
// id, including by being destroyed. Overwrites in place are not recorded.
func (w *World) WatchComponent(id ComponentID) {
	if _, ok := w.compLogs[id]; !ok {
		w.compLogs[id] = newChangeLog()
	}
}

// ComponentChanges returns and clears the ids recorded for id.
func (w *World) ComponentChanges(id ComponentID) []EntityID {
	l, ok := w.compLogs[id]
	if !ok {
		return nil
	}
	return l.take()
}

func (w *World) noteRelation(kind RelationKind, e EntityID) {
	if l, ok := w.relLogs[kind]; ok {
		l.add(e)
	}
}

// noteLayout records e for every watched component present in exactly one of
// src and dst. A nil dst means e is going away.
func (w *World) noteLayout(e EntityID, src, dst *archetype) {
	for id, l := range w.compLogs {
		had := src != nil && src.has(id)
		has := dst != nil && dst.has(id)
		if had != has {
			l.add(e)
		}
	}
}
