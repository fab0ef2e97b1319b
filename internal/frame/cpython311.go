package frame

import (
	"fmt"
	"unsafe"

	"github.com/coral-mesh/remora/internal/safe"
)

// CPython311 is the Layout adapter for CPython 3.11 frame objects. The
// struct mirrors below were taken from the 3.11 headers; they are private
// interpreter layout, not API. Attaching this adapter to any other
// interpreter build is undefined behavior: the contract is enforced at
// deployment time, not here.
//
// Every accessor treats a null pointer or out-of-range index as "value
// absent" rather than an error, because the hook can observe a frame
// between two interpreter writes.
type CPython311 struct{}

// NewCPython311 creates the CPython 3.11 layout adapter.
func NewCPython311() *CPython311 {
	return &CPython311{}
}

// pySsize mirrors Py_ssize_t. The adapter supports 64-bit builds only,
// where both are pointer-sized.
type pySsize = int

// codeUnit mirrors one 16-bit bytecode unit.
type codeUnit struct {
	op  uint8
	arg uint8
}

// pyObject mirrors PyObject.
type pyObject struct {
	refcnt uintptr
	typ    *pyTypeObject
}

// pyVarObject mirrors PyVarObject.
type pyVarObject struct {
	base pyObject
	size pySsize
}

// pyTypeObject mirrors PyTypeObject up to tp_name; the adapter reads
// nothing beyond it.
type pyTypeObject struct {
	base pyVarObject
	name *byte
}

// pyASCIIObject mirrors PyASCIIObject. Compact ASCII string data begins
// immediately after this header.
type pyASCIIObject struct {
	base   pyObject
	length pySsize
	hash   pySsize
	state  uint32
	_      [4]byte
	wstr   uintptr
}

const (
	asciiStateCompact = 1 << 4
	asciiStateASCII   = 1 << 5
)

// pyTupleObject mirrors PyTupleObject; items follow the header.
type pyTupleObject struct {
	base pyVarObject
}

// pyFrameObject mirrors the public PyFrameObject of 3.11.
type pyFrameObject struct {
	base         pyObject
	back         uintptr
	iframe       *interpFrame311
	trace        uintptr
	lineno       int32
	traceLines   int8
	traceOpcodes int8
	fastAsLocals int8
}

// interpFrame311 mirrors the private _PyInterpreterFrame of 3.11.
type interpFrame311 struct {
	funcObj    uintptr
	globals    uintptr
	builtins   uintptr
	locals     uintptr
	code       *pyCodeObject311
	frameObj   uintptr
	previous   uintptr
	prevInstr  *codeUnit
	stacktop   int32
	isEntry    bool
	owner      int8
	_          [2]byte
	localsplus [1]uintptr
}

// pyCodeObject311 mirrors PyCodeObject of 3.11 up to the fields the
// adapter needs.
type pyCodeObject311 struct {
	base               pyVarObject
	consts             uintptr
	names              uintptr
	exceptiontable     uintptr
	flags              int32
	warmup             int16
	linearrayEntrySize int16
	argcount           int32
	posonlyargcount    int32
	kwonlyargcount     int32
	stacksize          int32
	firstlineno        int32
	nlocalsplus        int32
	nlocals            int32
	nplaincellvars     int32
	ncellvars          int32
	nfreevars          int32
	localsplusnames    uintptr
	localspluskinds    uintptr
	filename           uintptr
	name               uintptr
	qualname           uintptr
}

// Bytecode numbers from the 3.11 opcode table.
const (
	op311StoreSubscr = 60
	op311StoreName   = 90
	op311StoreAttr   = 95
	op311StoreGlobal = 97
	op311StoreFast   = 125
	op311Call        = 171
)

// classify311 maps a raw 3.11 opcode to its abstract class.
func classify311(op uint8) Class {
	switch op {
	case op311StoreName:
		return StoreName
	case op311StoreGlobal:
		return StoreGlobal
	case op311StoreFast:
		return StoreFast
	case op311StoreAttr:
		return StoreAttr
	case op311StoreSubscr:
		return StoreSubscr
	case op311Call:
		return Call
	default:
		return Other
	}
}

// pyValue wraps a borrowed PyObject pointer observed on an operand stack.
type pyValue uintptr

func (l *CPython311) iframe(f Frame) *interpFrame311 {
	if f == 0 {
		return nil
	}
	fo := (*pyFrameObject)(unsafe.Pointer(f)) //nolint:govet // raw layout mirror
	return fo.iframe
}

func (l *CPython311) codeOf(f Frame) *pyCodeObject311 {
	ifr := l.iframe(f)
	if ifr == nil {
		return nil
	}
	return ifr.code
}

// Filename implements Layout.
func (l *CPython311) Filename(f Frame) (string, error) {
	code := l.codeOf(f)
	if code == nil {
		return "", fmt.Errorf("frame %#x has no code object", uintptr(f))
	}
	s, ok := readCompactString(code.filename)
	if !ok {
		return "", fmt.Errorf("frame %#x filename is not readable", uintptr(f))
	}
	return s, nil
}

// FunctionName implements Layout.
func (l *CPython311) FunctionName(f Frame) (string, error) {
	code := l.codeOf(f)
	if code == nil {
		return "", fmt.Errorf("frame %#x has no code object", uintptr(f))
	}
	s, ok := readCompactString(code.name)
	if !ok {
		return "", fmt.Errorf("frame %#x function name is not readable", uintptr(f))
	}
	return s, nil
}

// LastInstr implements Layout.
func (l *CPython311) LastInstr(f Frame) (Instr, bool) {
	ifr := l.iframe(f)
	if ifr == nil || ifr.prevInstr == nil {
		return Instr{}, false
	}
	cu := *ifr.prevInstr
	return Instr{Class: classify311(cu.op), Arg: cu.arg}, true
}

// StackPeek implements Layout. Slot 0 is the current stack top, resolved
// as localsplus[stacktop-1].
func (l *CPython311) StackPeek(f Frame, depth int) (Value, bool) {
	ifr := l.iframe(f)
	if ifr == nil || depth < 0 {
		return nil, false
	}
	top := int(ifr.stacktop)
	if depth >= top {
		return nil, false
	}
	base := uintptr(unsafe.Pointer(ifr)) + unsafe.Offsetof(ifr.localsplus)
	slot := *(*uintptr)(unsafe.Pointer(base + uintptr(top-1-depth)*unsafe.Sizeof(uintptr(0))))
	if slot == 0 {
		return nil, false
	}
	return pyValue(slot), true
}

// NameAt implements Layout.
func (l *CPython311) NameAt(f Frame, table NameTable, idx int) (string, bool) {
	code := l.codeOf(f)
	if code == nil {
		return "", false
	}
	tuple := code.names
	if table == Locals {
		tuple = code.localsplusnames
	}
	item, ok := tupleItem(tuple, idx)
	if !ok {
		return "", false
	}
	return readCompactString(item)
}

// Describe implements Layout. Strings render as their text; everything
// else falls back to the value's type name and address.
func (l *CPython311) Describe(v Value) string {
	if v == NoValue {
		return "<no value>"
	}
	pv, ok := v.(pyValue)
	if !ok || pv == 0 {
		return "<nil>"
	}
	if s, ok := readCompactString(uintptr(pv)); ok {
		return s
	}
	addr, _ := safe.Uint64ToInt64(uint64(pv))
	return fmt.Sprintf("<%s at %#x>", typeName(uintptr(pv)), addr)
}

// SetLineEvents implements LineToggler by flipping f_trace_lines.
func (l *CPython311) SetLineEvents(f Frame, enabled bool) {
	if f == 0 {
		return
	}
	fo := (*pyFrameObject)(unsafe.Pointer(f))
	if enabled {
		fo.traceLines = 1
	} else {
		fo.traceLines = 0
	}
}

// maxStringRead bounds raw string reads so a corrupt length field cannot
// drag in unbounded memory.
const maxStringRead = 4096

// readCompactString reads a compact ASCII (or latin-1 compact) unicode
// object. Non-compact and wide-kind strings report false; callers fall
// back to an address rendering.
func readCompactString(addr uintptr) (string, bool) {
	if addr == 0 {
		return "", false
	}
	u := (*pyASCIIObject)(unsafe.Pointer(addr))
	if u.state&asciiStateCompact == 0 {
		return "", false
	}
	n := u.length
	if n < 0 || n > maxStringRead {
		return "", false
	}
	data := addr + unsafe.Sizeof(pyASCIIObject{})
	if u.state&asciiStateASCII == 0 {
		// Compact non-ASCII data sits past the PyCompactUnicodeObject
		// extension (utf8_length, utf8, wstr_length); only 1-byte kind
		// is readable this way.
		kind := (u.state >> 1) & 0x7
		if kind != 1 {
			return "", false
		}
		data += 2*unsafe.Sizeof(pySsize(0)) + unsafe.Sizeof(uintptr(0))
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(data)), n)
	return string(b), true
}

// tupleItem returns element idx of a PyTupleObject.
func tupleItem(addr uintptr, idx int) (uintptr, bool) {
	if addr == 0 || idx < 0 {
		return 0, false
	}
	t := (*pyTupleObject)(unsafe.Pointer(addr))
	if idx >= t.base.size {
		return 0, false
	}
	items := addr + unsafe.Sizeof(pyTupleObject{})
	item := *(*uintptr)(unsafe.Pointer(items + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
	if item == 0 {
		return 0, false
	}
	return item, true
}

// typeName reads ob_type->tp_name, bounded and defensive.
func typeName(addr uintptr) string {
	if addr == 0 {
		return "unknown"
	}
	obj := (*pyObject)(unsafe.Pointer(addr))
	if obj.typ == nil || obj.typ.name == nil {
		return "unknown"
	}
	p := uintptr(unsafe.Pointer(obj.typ.name))
	var buf []byte
	for i := 0; i < 64; i++ {
		c := *(*byte)(unsafe.Pointer(p + uintptr(i)))
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}
	if len(buf) == 0 {
		return "unknown"
	}
	return string(buf)
}
