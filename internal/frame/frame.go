// Package frame defines the boundary between the tracing core and the
// traced runtime's frame memory layout.
//
// The core never touches a frame directly. It holds opaque Frame handles,
// uses them as map keys, and goes through a Layout implementation for
// every read. One Layout exists per supported runtime build; pairing a
// Layout with an incompatible build is undefined behavior and cannot be
// detected at runtime.
package frame

// Frame identifies one live function invocation. It is borrowed from the
// runtime and valid only while that invocation executes; the core uses it
// for identity and hashing, never for dereferencing.
type Frame uintptr

// Value is an opaque runtime value observed on a frame's operand stack.
type Value any

type noValue struct{}

func (noValue) String() string { return "<no value>" }

// NoValue marks a return event for which the runtime supplied no value.
var NoValue Value = noValue{}

// Class is the abstract classification of a just-executed instruction.
// Layout adapters translate their runtime-specific opcode encoding into
// these classes so the decoder stays layout-agnostic.
type Class uint8

const (
	// Other covers every instruction the decoder does not reconstruct.
	Other Class = iota
	// StoreName assigns the top stack value to a name-table target.
	StoreName
	// StoreGlobal assigns the top stack value to a module-level target.
	StoreGlobal
	// StoreFast assigns the top stack value to a fast-local target.
	StoreFast
	// StoreAttr assigns the second stack value to an attribute of the top value.
	StoreAttr
	// StoreSubscr assigns the third stack value to a subscript of the second.
	StoreSubscr
	// Call invokes a callable with Arg positional arguments from the stack.
	Call
)

// Instr describes the last instruction a frame executed.
type Instr struct {
	Class Class
	// Arg is the instruction operand: a symbol-table index for stores,
	// the declared argument count for calls.
	Arg uint8
}

// NameTable selects which of a frame's symbol tables a name index refers to.
type NameTable uint8

const (
	// Names is the table of global, attribute and name-based targets.
	Names NameTable = iota
	// Locals is the table of fast locals and cell variables.
	Locals
)

// Layout exposes typed accessors onto a raw execution frame. All methods
// are read-only with respect to the frame and must tolerate transient or
// invalid slots by reporting absence rather than failing hard.
type Layout interface {
	// Filename returns the source path the frame's code originates from.
	Filename(f Frame) (string, error)

	// FunctionName returns the name of the frame's enclosing function.
	FunctionName(f Frame) (string, error)

	// LastInstr returns the frame's just-executed instruction descriptor.
	LastInstr(f Frame) (Instr, bool)

	// StackPeek reads the operand stack slot depth entries below the
	// current stack top (0 = top). It reports false for slots that are
	// out of range or hold no readable value.
	StackPeek(f Frame, depth int) (Value, bool)

	// NameAt resolves index idx in the given symbol table of the frame's
	// code object.
	NameAt(f Frame, table NameTable, idx int) (string, bool)

	// Describe renders a best-effort human-readable form of a value.
	Describe(v Value) string
}

// LineToggler is an optional Layout capability: disabling per-line event
// emission for a frame whose code is known to be uninteresting. Callers
// type-assert; adapters without the capability simply keep line events on.
type LineToggler interface {
	SetLineEvents(f Frame, enabled bool)
}
