package frame

import (
	"fmt"
	"sync"
)

// MemFrame is a synthetic frame backing one MemLayout handle. Stack is
// ordered bottom to top; a nil slot models an unreadable value.
type MemFrame struct {
	File       string
	Func       string
	Names      []string
	Locals     []string
	Stack      []Value
	Instr      Instr
	HasInstr   bool
	LineEvents bool
}

// MemLayout is an in-memory Layout implementation. It exists for tests
// and for embedders that replay recorded frames without a live runtime;
// frames are registered explicitly and addressed by the returned handle.
type MemLayout struct {
	mu     sync.Mutex
	next   Frame
	frames map[Frame]*MemFrame
}

// NewMemLayout creates an empty in-memory layout.
func NewMemLayout() *MemLayout {
	return &MemLayout{
		next:   1,
		frames: make(map[Frame]*MemFrame),
	}
}

// Add registers a synthetic frame and returns its handle.
func (l *MemLayout) Add(mf *MemFrame) Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.next
	l.next++
	l.frames[f] = mf
	return f
}

// Remove drops a synthetic frame, mimicking the runtime destroying it.
func (l *MemLayout) Remove(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.frames, f)
}

// Get returns the backing MemFrame for inspection, or nil.
func (l *MemLayout) Get(f Frame) *MemFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames[f]
}

// Filename implements Layout.
func (l *MemLayout) Filename(f Frame) (string, error) {
	mf := l.Get(f)
	if mf == nil {
		return "", fmt.Errorf("unknown frame %#x", uintptr(f))
	}
	return mf.File, nil
}

// FunctionName implements Layout.
func (l *MemLayout) FunctionName(f Frame) (string, error) {
	mf := l.Get(f)
	if mf == nil {
		return "", fmt.Errorf("unknown frame %#x", uintptr(f))
	}
	return mf.Func, nil
}

// LastInstr implements Layout.
func (l *MemLayout) LastInstr(f Frame) (Instr, bool) {
	mf := l.Get(f)
	if mf == nil || !mf.HasInstr {
		return Instr{}, false
	}
	return mf.Instr, true
}

// StackPeek implements Layout. Depth 0 is the stack top.
func (l *MemLayout) StackPeek(f Frame, depth int) (Value, bool) {
	mf := l.Get(f)
	if mf == nil || depth < 0 || depth >= len(mf.Stack) {
		return nil, false
	}
	v := mf.Stack[len(mf.Stack)-1-depth]
	if v == nil {
		return nil, false
	}
	return v, true
}

// NameAt implements Layout.
func (l *MemLayout) NameAt(f Frame, table NameTable, idx int) (string, bool) {
	mf := l.Get(f)
	if mf == nil || idx < 0 {
		return "", false
	}
	names := mf.Names
	if table == Locals {
		names = mf.Locals
	}
	if idx >= len(names) {
		return "", false
	}
	return names[idx], true
}

// Describe implements Layout.
func (l *MemLayout) Describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", v)
}

// SetLineEvents implements LineToggler.
func (l *MemLayout) SetLineEvents(f Frame, enabled bool) {
	if mf := l.Get(f); mf != nil {
		mf.LineEvents = enabled
	}
}
