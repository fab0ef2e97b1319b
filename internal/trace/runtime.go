package trace

import (
	"github.com/coral-mesh/remora/internal/frame"
)

// Hook is the per-event entry point the runtime binding invokes, inline
// on the thread executing the traced code.
type Hook func(f frame.Frame, ev RawEvent)

// Runtime binds a Hook into the traced program's trace-function slot.
// Installation is explicit process-wide state: Install and Uninstall are
// not reentrant and must be serialized by the caller.
type Runtime interface {
	Install(h Hook) error
	Uninstall() error
}
