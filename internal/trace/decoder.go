package trace

import (
	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
)

// Stack offset of the stored value below the current top, per store
// class. Plain stores leave the value on top; attribute stores have the
// target object above it; subscript stores have the target object and
// the subscript key above it.
const (
	storeValueDepth     = 0
	storeAttrValueDepth = 1
	storeSubValueDepth  = 2
	storeSubKeyDepth    = 0
)

// Decoder reconstructs assignment and invocation events from a frame's
// raw operand stack. All reads go through the layout adapter and are
// strictly read-only; an unreadable name or value drops the event
// silently, since a raw read can observe a transient slot.
type Decoder struct {
	layout frame.Layout
	logger zerolog.Logger
}

// NewDecoder creates a decoder over the given layout adapter.
func NewDecoder(layout frame.Layout, logger zerolog.Logger) *Decoder {
	return &Decoder{
		layout: layout,
		logger: logger.With().Str("component", "decoder").Logger(),
	}
}

// Decode inspects the frame's just-executed instruction and, for the
// curated store/call classes, rebuilds the semantic event. It reports
// false for every other instruction and for any unreadable slot.
func (d *Decoder) Decode(f frame.Frame) (OpcodeEvent, bool) {
	in, ok := d.layout.LastInstr(f)
	if !ok {
		return OpcodeEvent{}, false
	}

	switch in.Class {
	case frame.StoreName, frame.StoreGlobal, frame.StoreFast, frame.StoreAttr, frame.StoreSubscr:
		return d.decodeStore(f, in)
	case frame.Call:
		return d.decodeCall(f, in)
	default:
		return OpcodeEvent{}, false
	}
}

func (d *Decoder) decodeStore(f frame.Frame, in frame.Instr) (OpcodeEvent, bool) {
	var (
		name  string
		ok    bool
		depth = storeValueDepth
	)

	switch in.Class {
	case frame.StoreFast:
		name, ok = d.layout.NameAt(f, frame.Locals, int(in.Arg))
	case frame.StoreAttr:
		name, ok = d.layout.NameAt(f, frame.Names, int(in.Arg))
		depth = storeAttrValueDepth
	case frame.StoreSubscr:
		// Subscript targets carry no symbol-table operand; the target
		// name is the subscript key sitting on top of the stack.
		var key frame.Value
		key, ok = d.layout.StackPeek(f, storeSubKeyDepth)
		if ok {
			name = d.layout.Describe(key)
		}
		depth = storeSubValueDepth
	default: // StoreName, StoreGlobal
		name, ok = d.layout.NameAt(f, frame.Names, int(in.Arg))
	}
	if !ok || name == "" {
		return OpcodeEvent{}, false
	}

	value, ok := d.layout.StackPeek(f, depth)
	if !ok {
		return OpcodeEvent{}, false
	}

	return OpcodeEvent{Kind: OpAssign, Name: name, Value: value}, true
}

// decodeCall recovers the callable and arguments of a call-class
// instruction. The slot two below the arguments holds the bound callable
// of a method call; when occupied, the slot above it is the receiver and
// becomes the first effective argument.
func (d *Decoder) decodeCall(f frame.Frame, in frame.Instr) (OpcodeEvent, bool) {
	argc := int(in.Arg)

	callable, ok := d.layout.StackPeek(f, argc)
	if !ok {
		return OpcodeEvent{}, false
	}

	args := make([]frame.Value, 0, argc+1)
	method, isMethod := d.layout.StackPeek(f, argc+1)
	if isMethod {
		// Receiver-first: the plain-callable slot is the bound receiver.
		args = append(args, callable)
		callable = method
	}
	for depth := argc - 1; depth >= 0; depth-- {
		v, ok := d.layout.StackPeek(f, depth)
		if !ok {
			v = frame.NoValue
		}
		args = append(args, v)
	}

	return OpcodeEvent{
		Kind:     OpInvoke,
		Callable: callable,
		Args:     args,
		IsMethod: isMethod,
	}, true
}
