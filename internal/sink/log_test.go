package sink

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/trace"
)

func logFixture() (*Log, *frame.MemLayout, *bytes.Buffer) {
	layout := frame.NewMemLayout()
	buf := &bytes.Buffer{}
	return NewLog(layout, zerolog.New(buf)), layout, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogCallIncludesFrameContext(t *testing.T) {
	s, layout, buf := logFixture()
	f := layout.Add(&frame.MemFrame{File: "/src/app.py", Func: "handler"})

	require.NoError(t, s.HandleCall(f))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "call", lines[0]["event"])
	assert.Equal(t, "handler", lines[0]["function"])
	assert.Equal(t, "/src/app.py", lines[0]["file"])
}

func TestLogReturnRendersValue(t *testing.T) {
	s, layout, buf := logFixture()
	f := layout.Add(&frame.MemFrame{Func: "handler"})

	require.NoError(t, s.HandleReturn(f, frame.NoValue))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "<no value>", lines[0]["value"])
}

func TestLogUnknownFrameStillLogs(t *testing.T) {
	s, _, buf := logFixture()

	// A frame the layout cannot resolve degrades to an entry without
	// function/file context.
	require.NoError(t, s.HandleLine(frame.Frame(404)))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "line", lines[0]["event"])
	assert.NotContains(t, lines[0], "function")
}

func TestLogOpcodeEvents(t *testing.T) {
	s, layout, buf := logFixture()
	f := layout.Add(&frame.MemFrame{Func: "handler"})

	require.NoError(t, s.HandleOpcode(f, trace.OpcodeEvent{
		Kind:  trace.OpAssign,
		Name:  "x",
		Value: 5,
	}))
	require.NoError(t, s.HandleOpcode(f, trace.OpcodeEvent{
		Kind:     trace.OpInvoke,
		Callable: "connect",
		Args:     []frame.Value{"localhost", 5432},
		IsMethod: true,
	}))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "x", lines[0]["name"])
	assert.Equal(t, "5", lines[0]["value"])
	assert.Equal(t, "connect", lines[1]["callable"])
	assert.Equal(t, true, lines[1]["method"])
}
