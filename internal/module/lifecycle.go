package module

import (
	"fmt"

	"github.com/tickworld/engine/internal/core/event"
)

// Shutdown chain events, emitted in this order with a zero target.
const (
	Shutdown        event.Kind = "module.Shutdown"
	Cleanup         event.Kind = "module.Cleanup"
	CleanupGraphics event.Kind = "module.CleanupGraphics"
	Close           event.Kind = "module.Close"
)

// Stage is the global shutdown state.
type Stage uint8

const (
	Running Stage = iota
	CleanupRequested
	CleanupDone
	Closed
)

func (s Stage) String() string {
	switch s {
	case Running:
		return "running"
	case CleanupRequested:
		return "cleanup-requested"
	case CleanupDone:
		return "cleanup-done"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Lifecycle is the world singleton driving the shutdown handshake. The
// driver polls ShouldQuit after every tick.
type Lifecycle struct {
	Stage Stage
	// Armed is set once every module reported cleanup; the graphics stage
	// never fires twice.
	Armed      bool
	ShouldQuit bool
}

// Record is the per-module progress token of the handshake.
type Record struct {
	Name        string
	CleanupDone bool
}
