// Package trace implements the event-filtering and event-reconstruction
// engine: a dispatcher installed as the runtime's per-event trace hook,
// a memoizing path filter, a single-slot exclusion guard, the registry of
// actively traced frames, and the operand-stack decoder that recovers
// assignments and invocations from instruction-level notifications.
//
// The hook runs inline on whichever thread executes the traced code, so
// all shared state in this package is safe for concurrent use and no
// failure is ever allowed to propagate back into the host runtime.
package trace
