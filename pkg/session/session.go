// Package session assembles a tracing session from configuration: the
// policy rules, the enabled sinks and the dispatcher, wired together.
// It is the embedder's entry point; the embedder supplies the two
// pieces that depend on the traced process, the layout adapter and the
// runtime hook binding.
package session

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/logging"
	"github.com/coral-mesh/remora/internal/policy"
	"github.com/coral-mesh/remora/internal/sink"
	"github.com/coral-mesh/remora/internal/trace"
	"github.com/coral-mesh/remora/pkg/config"
)

// Session is one configured tracing session.
type Session struct {
	dispatcher *trace.Dispatcher
	recorder   *sink.Recorder
	stream     *sink.Stream
	logger     zerolog.Logger
}

// New builds a session from configuration, with diagnostics logged per
// the config's log section. Layout and runtime come from the embedder;
// everything else is derived from cfg.
func New(cfg *config.Config, layout frame.Layout, runtime trace.Runtime) (*Session, error) {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	return NewWithLogger(cfg, layout, runtime, logger)
}

// NewWithLogger is New with a caller-supplied logger, for embedders
// that already have one configured.
func NewWithLogger(cfg *config.Config, layout frame.Layout, runtime trace.Runtime, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules, err := policy.New(policy.Config{
		Root:              cfg.Root,
		IncludeGlobs:      cfg.Policy.IncludeGlobs,
		ExcludedFunctions: cfg.Policy.ExcludedFunctions,
		IgnoreSystemPaths: cfg.Policy.IgnoreSystemPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("build policy: %w", err)
	}

	s := &Session{logger: logger.With().Str("component", "session").Logger()}

	var sinks []trace.Sink
	if cfg.Sinks.Log {
		sinks = append(sinks, sink.NewLog(layout, logger))
	}
	if cfg.Sinks.WebSocketListen != "" {
		stream, err := sink.NewStream(sink.StreamConfig{Listen: cfg.Sinks.WebSocketListen}, layout, logger)
		if err != nil {
			return nil, fmt.Errorf("build stream sink: %w", err)
		}
		s.stream = stream
		sinks = append(sinks, stream)
	}
	if cfg.Sinks.DuckDBPath != "" {
		s.recorder = sink.NewRecorder(sink.RecorderConfig{Path: cfg.Sinks.DuckDBPath}, cfg.Root, layout, logger)
		sinks = append(sinks, s.recorder)
	}

	var target trace.Sink
	switch len(sinks) {
	case 0:
		// Validate guarantees at least one sink; keep a defined fallback
		// for embedders constructing Config by hand.
		target = trace.NopSink{}
	case 1:
		target = sinks[0]
	default:
		target = sink.NewMulti(logger, sinks...)
	}

	dispatcher, err := trace.New(trace.Config{
		Root:               cfg.Root,
		Layout:             layout,
		Sink:               target,
		Policy:             rules,
		Runtime:            runtime,
		Logger:             logger,
		CacheMatchFailures: cfg.Policy.CacheMatchFailures,
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatcher
	return s, nil
}

// Dispatcher exposes the assembled dispatcher for manual frame
// injection and direct hook wiring.
func (s *Session) Dispatcher() *trace.Dispatcher {
	return s.dispatcher
}

// RecordedSessionID returns the recorder's session id, or "" when
// recording is disabled.
func (s *Session) RecordedSessionID() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.SessionID()
}

// Start installs the hook and starts the sinks.
func (s *Session) Start() error {
	if err := s.dispatcher.Start(); err != nil {
		return err
	}
	s.logger.Info().Str("root", s.dispatcher.Root()).Msg("session started")
	return nil
}

// Stop uninstalls the hook and stops the sinks.
func (s *Session) Stop() error {
	if err := s.dispatcher.Stop(); err != nil {
		return err
	}
	s.logger.Info().Msg("session stopped")
	return nil
}
