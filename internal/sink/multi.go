package sink

import (
	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/trace"
)

// Multi fans every event out to several sinks in order. A failing sink
// is logged and skipped for that event; the remaining sinks still
// receive it.
type Multi struct {
	sinks  []trace.Sink
	logger zerolog.Logger
}

// NewMulti combines sinks into one. The order given is the delivery
// order.
func NewMulti(logger zerolog.Logger, sinks ...trace.Sink) *Multi {
	return &Multi{
		sinks:  sinks,
		logger: logger.With().Str("component", "multi-sink").Logger(),
	}
}

// Start starts every sink. Unlike event delivery, a failed start is
// returned: a session should not silently run with a sink missing.
func (m *Multi) Start() error {
	for _, s := range m.sinks {
		if err := s.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every sink, logging failures and continuing so one stuck
// sink cannot prevent the others from flushing.
func (m *Multi) Stop() error {
	for _, s := range m.sinks {
		if err := s.Stop(); err != nil {
			m.logger.Warn().Err(err).Msg("sink stop failed")
		}
	}
	return nil
}

func (m *Multi) HandleCall(f frame.Frame) error {
	m.each("call", func(s trace.Sink) error { return s.HandleCall(f) })
	return nil
}

func (m *Multi) HandleReturn(f frame.Frame, value frame.Value) error {
	m.each("return", func(s trace.Sink) error { return s.HandleReturn(f, value) })
	return nil
}

func (m *Multi) HandleLine(f frame.Frame) error {
	m.each("line", func(s trace.Sink) error { return s.HandleLine(f) })
	return nil
}

func (m *Multi) HandleException(f frame.Frame, exc trace.ExceptionInfo) error {
	m.each("exception", func(s trace.Sink) error { return s.HandleException(f, exc) })
	return nil
}

func (m *Multi) HandleOpcode(f frame.Frame, ev trace.OpcodeEvent) error {
	m.each("opcode", func(s trace.Sink) error { return s.HandleOpcode(f, ev) })
	return nil
}

func (m *Multi) each(what string, deliver func(trace.Sink) error) {
	for _, s := range m.sinks {
		if err := deliver(s); err != nil {
			m.logger.Warn().Err(err).Str("event", what).Msg("sink delivery failed")
		}
	}
}
