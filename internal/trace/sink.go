package trace

import (
	"github.com/coral-mesh/remora/internal/frame"
)

// Sink consumes reconstructed trace events. All calls are synchronous;
// a returned error is logged and swallowed at the dispatcher boundary,
// never propagated into the host runtime.
type Sink interface {
	Start() error
	Stop() error

	HandleCall(f frame.Frame) error
	HandleReturn(f frame.Frame, value frame.Value) error
	HandleLine(f frame.Frame) error
	HandleException(f frame.Frame, exc ExceptionInfo) error
	HandleOpcode(f frame.Frame, ev OpcodeEvent) error
}

// NopSink discards every event. Useful as a default and in benchmarks.
type NopSink struct{}

func (NopSink) Start() error { return nil }
func (NopSink) Stop() error  { return nil }

func (NopSink) HandleCall(frame.Frame) error                     { return nil }
func (NopSink) HandleReturn(frame.Frame, frame.Value) error      { return nil }
func (NopSink) HandleLine(frame.Frame) error                     { return nil }
func (NopSink) HandleException(frame.Frame, ExceptionInfo) error { return nil }
func (NopSink) HandleOpcode(frame.Frame, OpcodeEvent) error      { return nil }
