package sink

import (
	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/trace"
)

// Log renders every event as a structured log line, resolving function
// and file context through the layout adapter.
type Log struct {
	layout frame.Layout
	logger zerolog.Logger
}

// NewLog creates a logging sink.
func NewLog(layout frame.Layout, logger zerolog.Logger) *Log {
	return &Log{
		layout: layout,
		logger: logger.With().Str("component", "log-sink").Logger(),
	}
}

func (s *Log) Start() error { return nil }
func (s *Log) Stop() error  { return nil }

func (s *Log) HandleCall(f frame.Frame) error {
	s.event(f, "call").Msg("call")
	return nil
}

func (s *Log) HandleReturn(f frame.Frame, value frame.Value) error {
	s.event(f, "return").Str("value", s.layout.Describe(value)).Msg("return")
	return nil
}

func (s *Log) HandleLine(f frame.Frame) error {
	s.event(f, "line").Msg("line")
	return nil
}

func (s *Log) HandleException(f frame.Frame, exc trace.ExceptionInfo) error {
	s.event(f, "exception").
		Str("type", s.layout.Describe(exc.Type)).
		Str("value", s.layout.Describe(exc.Value)).
		Msg("exception")
	return nil
}

func (s *Log) HandleOpcode(f frame.Frame, ev trace.OpcodeEvent) error {
	switch ev.Kind {
	case trace.OpAssign:
		s.event(f, "assign").
			Str("name", ev.Name).
			Str("value", s.layout.Describe(ev.Value)).
			Msg("assignment")
	case trace.OpInvoke:
		args := make([]string, len(ev.Args))
		for i, a := range ev.Args {
			args[i] = s.layout.Describe(a)
		}
		s.event(f, "invoke").
			Str("callable", s.layout.Describe(ev.Callable)).
			Strs("args", args).
			Bool("method", ev.IsMethod).
			Msg("invocation")
	}
	return nil
}

// event seeds a log entry with the frame's resolved context. Resolution
// failures degrade to an entry without that field; the frame may already
// be gone by the time a human reads the log, the id is best-effort.
func (s *Log) event(f frame.Frame, kind string) *zerolog.Event {
	e := s.logger.Info().Str("event", kind).Uint64("frame", uint64(f))
	if name, err := s.layout.FunctionName(f); err == nil {
		e = e.Str("function", name)
	}
	if file, err := s.layout.Filename(f); err == nil {
		e = e.Str("file", file)
	}
	return e
}
