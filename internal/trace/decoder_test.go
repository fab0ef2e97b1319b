package trace

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/remora/internal/frame"
)

func newTestDecoder(layout frame.Layout) *Decoder {
	return NewDecoder(layout, zerolog.Nop())
}

func TestDecodeStoreFast(t *testing.T) {
	layout := frame.NewMemLayout()
	f := layout.Add(&frame.MemFrame{
		Locals:   []string{"x"},
		Stack:    []frame.Value{5},
		Instr:    frame.Instr{Class: frame.StoreFast, Arg: 0},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, OpAssign, ev.Kind)
	assert.Equal(t, "x", ev.Name)
	assert.Equal(t, 5, ev.Value)
}

func TestDecodeStoreNameAndGlobal(t *testing.T) {
	for _, class := range []frame.Class{frame.StoreName, frame.StoreGlobal} {
		layout := frame.NewMemLayout()
		f := layout.Add(&frame.MemFrame{
			Names:    []string{"count", "total"},
			Stack:    []frame.Value{"ready"},
			Instr:    frame.Instr{Class: class, Arg: 1},
			HasInstr: true,
		})

		ev, ok := newTestDecoder(layout).Decode(f)
		require.True(t, ok, "class %v", class)
		assert.Equal(t, "total", ev.Name)
		assert.Equal(t, "ready", ev.Value)
	}
}

func TestDecodeStoreAttr(t *testing.T) {
	layout := frame.NewMemLayout()
	// obj.size = 42: the target object sits on top of the value.
	f := layout.Add(&frame.MemFrame{
		Names:    []string{"size"},
		Stack:    []frame.Value{42, "obj"},
		Instr:    frame.Instr{Class: frame.StoreAttr, Arg: 0},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, "size", ev.Name)
	assert.Equal(t, 42, ev.Value)
}

func TestDecodeStoreSubscr(t *testing.T) {
	layout := frame.NewMemLayout()
	// container["key"] = 99: container and key sit above the value.
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{99, "container", "key"},
		Instr:    frame.Instr{Class: frame.StoreSubscr},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, "key", ev.Name)
	assert.Equal(t, 99, ev.Value)
}

func TestDecodeStoreUnreadableSlotsDrop(t *testing.T) {
	tests := []struct {
		name string
		mf   *frame.MemFrame
	}{
		{
			name: "name index out of range",
			mf: &frame.MemFrame{
				Locals:   []string{"x"},
				Stack:    []frame.Value{5},
				Instr:    frame.Instr{Class: frame.StoreFast, Arg: 9},
				HasInstr: true,
			},
		},
		{
			name: "value slot empty",
			mf: &frame.MemFrame{
				Locals:   []string{"x"},
				Stack:    []frame.Value{nil},
				Instr:    frame.Instr{Class: frame.StoreFast, Arg: 0},
				HasInstr: true,
			},
		},
		{
			name: "attr value below stack bottom",
			mf: &frame.MemFrame{
				Names:    []string{"size"},
				Stack:    []frame.Value{"obj"},
				Instr:    frame.Instr{Class: frame.StoreAttr, Arg: 0},
				HasInstr: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := frame.NewMemLayout()
			f := layout.Add(tt.mf)
			_, ok := newTestDecoder(layout).Decode(f)
			assert.False(t, ok)
		})
	}
}

func TestDecodeCallMethod(t *testing.T) {
	layout := frame.NewMemLayout()
	// Bound method call: callable, receiver, then two positionals.
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{"C", "R", "a1", "a2"},
		Instr:    frame.Instr{Class: frame.Call, Arg: 2},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, OpInvoke, ev.Kind)
	assert.Equal(t, "C", ev.Callable)
	assert.Equal(t, []frame.Value{"R", "a1", "a2"}, ev.Args)
	assert.True(t, ev.IsMethod)
}

func TestDecodeCallPlain(t *testing.T) {
	layout := frame.NewMemLayout()
	// Plain call: the method slot below the callable is empty.
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{nil, "C", "a1", "a2"},
		Instr:    frame.Instr{Class: frame.Call, Arg: 2},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, "C", ev.Callable)
	assert.Equal(t, []frame.Value{"a1", "a2"}, ev.Args)
	assert.False(t, ev.IsMethod)
}

func TestDecodeCallNoArgs(t *testing.T) {
	layout := frame.NewMemLayout()
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{nil, "C"},
		Instr:    frame.Instr{Class: frame.Call, Arg: 0},
		HasInstr: true,
	})

	ev, ok := newTestDecoder(layout).Decode(f)
	require.True(t, ok)
	assert.Equal(t, "C", ev.Callable)
	assert.Empty(t, ev.Args)
	assert.False(t, ev.IsMethod)
}

func TestDecodeCallUnreadableCallableDrops(t *testing.T) {
	layout := frame.NewMemLayout()
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{nil, nil, "a1"},
		Instr:    frame.Instr{Class: frame.Call, Arg: 1},
		HasInstr: true,
	})

	_, ok := newTestDecoder(layout).Decode(f)
	assert.False(t, ok)
}

func TestDecodeIgnoresOtherInstructions(t *testing.T) {
	layout := frame.NewMemLayout()
	f := layout.Add(&frame.MemFrame{
		Stack:    []frame.Value{1},
		Instr:    frame.Instr{Class: frame.Other},
		HasInstr: true,
	})

	_, ok := newTestDecoder(layout).Decode(f)
	assert.False(t, ok)
}

func TestDecodeNoInstruction(t *testing.T) {
	layout := frame.NewMemLayout()
	f := layout.Add(&frame.MemFrame{})

	_, ok := newTestDecoder(layout).Decode(f)
	assert.False(t, ok)
}
