package trace

import (
	"sync/atomic"

	"github.com/coral-mesh/remora/internal/frame"
)

// exclusionGuard suppresses every event of the most recently marked
// policy-excluded invocation. It amortizes the excluded-function check to
// one policy call per excluded invocation instead of one per event.
//
// The guard is a single slot: a nested excluded invocation starting
// before the previous one returns overwrites the occupant, so the outer
// invocation's remaining events are no longer suppressed individually.
// That matches the original design; generalizing to a set would change
// the suppression semantics sinks observe.
type exclusionGuard struct {
	slot atomic.Uintptr
}

// Mark records f as the suppressed invocation, replacing any occupant.
func (g *exclusionGuard) Mark(f frame.Frame) {
	g.slot.Store(uintptr(f))
}

// Occupies reports whether f is the currently suppressed invocation.
func (g *exclusionGuard) Occupies(f frame.Frame) bool {
	occ := g.slot.Load()
	return occ != 0 && occ == uintptr(f)
}

// Clear returns the guard to idle.
func (g *exclusionGuard) Clear() {
	g.slot.Store(0)
}
