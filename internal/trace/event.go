package trace

import (
	"github.com/coral-mesh/remora/internal/frame"
)

// Kind enumerates the low-level notifications the runtime hook delivers.
type Kind uint8

const (
	// KindCall reports a new invocation entering execution.
	KindCall Kind = iota
	// KindReturn reports an invocation ending, normally or not.
	KindReturn
	// KindLine reports the frame advancing to a new source line.
	KindLine
	// KindException reports an exception propagating through the frame.
	KindException
	// KindInstruction reports a single executed instruction.
	KindInstruction
)

// String returns the lowercase event name.
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindLine:
		return "line"
	case KindException:
		return "exception"
	case KindInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// ExceptionInfo carries the runtime's exception triple.
type ExceptionInfo struct {
	Type      frame.Value
	Value     frame.Value
	Traceback frame.Value
}

// RawEvent is one low-level notification as handed to the hook.
type RawEvent struct {
	Kind Kind
	// Value carries the return value for KindReturn; nil means the
	// runtime supplied none and frame.NoValue is substituted downstream.
	Value frame.Value
	// Exception is set for KindException.
	Exception ExceptionInfo
}

// OpcodeKind distinguishes the two reconstructed instruction events.
type OpcodeKind uint8

const (
	// OpAssign is a store-class instruction: a named target received a value.
	OpAssign OpcodeKind = iota
	// OpInvoke is a call-class instruction: a callable was invoked.
	OpInvoke
)

// String returns the lowercase opcode-event name.
func (k OpcodeKind) String() string {
	if k == OpAssign {
		return "assign"
	}
	return "invoke"
}

// OpcodeEvent is a reconstructed instruction-level event.
type OpcodeEvent struct {
	Kind OpcodeKind

	// Assignment fields.
	Name  string
	Value frame.Value

	// Invocation fields. Args is ordered left to right as pushed, with
	// the bound receiver first when IsMethod is set.
	Callable frame.Value
	Args     []frame.Value
	IsMethod bool
}
