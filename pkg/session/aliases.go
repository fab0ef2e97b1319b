package session

import (
	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/trace"
)

// Aliases for the adapter-boundary types an embedder implements or
// handles, so the public surface needs no imports of internal packages.
type (
	Layout        = frame.Layout
	LineToggler   = frame.LineToggler
	Frame         = frame.Frame
	Value         = frame.Value
	Instr         = frame.Instr
	Class         = frame.Class
	NameTable     = frame.NameTable
	Runtime       = trace.Runtime
	Hook          = trace.Hook
	RawEvent      = trace.RawEvent
	Kind          = trace.Kind
	ExceptionInfo = trace.ExceptionInfo
	MemLayout     = frame.MemLayout
	MemFrame      = frame.MemFrame
)

// Event kinds a runtime binding delivers to the hook.
const (
	KindCall        = trace.KindCall
	KindReturn      = trace.KindReturn
	KindLine        = trace.KindLine
	KindException   = trace.KindException
	KindInstruction = trace.KindInstruction
)

// NewCPython311 returns the layout adapter for CPython 3.11 builds.
func NewCPython311() Layout {
	return frame.NewCPython311()
}

// NewMemLayout returns the in-memory reference layout, for embedders
// replaying recorded frames without a live runtime.
func NewMemLayout() *MemLayout {
	return frame.NewMemLayout()
}
