package trace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
)

// Config configures a Dispatcher.
type Config struct {
	// Root is the directory the tracing session is anchored to. It must
	// exist; construction fails otherwise.
	Root string
	// Layout is the per-runtime-build frame adapter.
	Layout frame.Layout
	// Sink consumes reconstructed events.
	Sink Sink
	// Policy decides path inclusion and function exclusion.
	Policy Policy
	// Runtime binds the hook into the traced program.
	Runtime Runtime
	// Logger receives dispatcher diagnostics.
	Logger zerolog.Logger
	// CacheMatchFailures caches a failed filename-match call as a
	// permanent exclusion instead of retrying the collaborator on the
	// next sighting of the path.
	CacheMatchFailures bool
}

// Dispatcher is the single hook entry point. It routes every low-level
// notification through the exclusion guard, the path filter cache and
// the active frame registry, and forwards accepted events to the sink.
// Dispatch runs inline on the traced thread; it never blocks on anything
// but the sink and never lets an error escape into the host runtime.
type Dispatcher struct {
	root    string
	layout  frame.Layout
	sink    Sink
	policy  Policy
	runtime Runtime
	logger  zerolog.Logger

	filter   *PathFilter
	guard    exclusionGuard
	registry *Registry
	decoder  *Decoder
}

// New creates a Dispatcher. The configured root must exist on the
// filesystem and layout, sink, policy and runtime must all be provided.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("runtime binding is required")
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve trace root %q: %w", cfg.Root, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("trace root %q: %w", root, err)
	}

	logger := cfg.Logger.With().Str("component", "dispatcher").Logger()

	return &Dispatcher{
		root:     root,
		layout:   cfg.Layout,
		sink:     cfg.Sink,
		policy:   cfg.Policy,
		runtime:  cfg.Runtime,
		logger:   logger,
		filter:   NewPathFilter(cfg.Policy, cfg.Layout, cfg.CacheMatchFailures, cfg.Logger),
		registry: NewRegistry(),
		decoder:  NewDecoder(cfg.Layout, cfg.Logger),
	}, nil
}

// Root returns the resolved session root directory.
func (d *Dispatcher) Root() string {
	return d.root
}

// Start installs Dispatch as the active hook and starts the sink. Not
// safe to call concurrently with Stop or with in-flight events; the
// caller serializes session lifecycle.
func (d *Dispatcher) Start() error {
	if err := d.runtime.Install(d.Dispatch); err != nil {
		return fmt.Errorf("install trace hook: %w", err)
	}
	if err := d.sink.Start(); err != nil {
		d.logger.Error().Err(err).Msg("sink start failed")
	}
	d.logger.Info().Str("root", d.root).Msg("tracing started")
	return nil
}

// Stop uninstalls the hook, stops the sink and clears the session's
// path-decision cache.
func (d *Dispatcher) Stop() error {
	if err := d.runtime.Uninstall(); err != nil {
		return fmt.Errorf("uninstall trace hook: %w", err)
	}
	if err := d.sink.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("sink stop failed")
	}
	d.filter.Reset()
	d.logger.Info().Msg("tracing stopped")
	return nil
}

// AddTargetFrame marks an already-executing frame as actively traced,
// bypassing the call-time filtering, and requests per-line events for it.
// Used when attaching mid-execution.
func (d *Dispatcher) AddTargetFrame(f frame.Frame) {
	d.registry.Add(f)
	if lt, ok := d.layout.(frame.LineToggler); ok {
		lt.SetLineEvents(f, true)
	}
}

// Dispatch is the hook body, invoked by the runtime binding for every
// low-level notification.
func (d *Dispatcher) Dispatch(f frame.Frame, ev RawEvent) {
	if d.guard.Occupies(f) {
		if ev.Kind == KindReturn || ev.Kind == KindException {
			d.guard.Clear()
		}
		return
	}

	switch ev.Kind {
	case KindCall:
		d.handleCall(f)
	case KindReturn:
		d.handleReturn(f, ev.Value)
	case KindLine:
		d.handleLine(f)
	case KindException:
		d.handleException(f, ev.Exception)
	case KindInstruction:
		d.handleInstruction(f)
	}
}

func (d *Dispatcher) handleCall(f frame.Frame) {
	if name, err := d.layout.FunctionName(f); err == nil {
		excluded, perr := d.policy.IsExcludedFunction(name)
		if perr != nil {
			// Conservative "not excluded"; the path filter still applies.
			d.logger.Debug().Err(perr).Str("function", name).Msg("exclusion check failed")
			excluded = false
		}
		if excluded {
			d.guard.Mark(f)
			return
		}
	}

	if !d.filter.Decide(f) {
		return
	}

	d.registry.Add(f)
	d.forward(d.sink.HandleCall(f), "call", f)
}

func (d *Dispatcher) handleReturn(f frame.Frame, value frame.Value) {
	if !d.registry.Remove(f) {
		return
	}
	if value == nil {
		value = frame.NoValue
	}
	d.forward(d.sink.HandleReturn(f, value), "return", f)
}

func (d *Dispatcher) handleLine(f frame.Frame) {
	if !d.registry.Contains(f) {
		return
	}
	d.forward(d.sink.HandleLine(f), "line", f)
}

func (d *Dispatcher) handleException(f frame.Frame, exc ExceptionInfo) {
	if !d.registry.Contains(f) {
		return
	}
	d.forward(d.sink.HandleException(f, exc), "exception", f)
}

// handleInstruction does not require the frame to be registered:
// instruction-level reporting is attached directly via AddTargetFrame or
// while a frame is already live.
func (d *Dispatcher) handleInstruction(f frame.Frame) {
	ev, ok := d.decoder.Decode(f)
	if !ok {
		return
	}
	d.forward(d.sink.HandleOpcode(f, ev), "opcode", f)
}

// forward contains a sink failure: logged, never retried, never raised.
func (d *Dispatcher) forward(err error, what string, f frame.Frame) {
	if err != nil {
		d.logger.Error().Err(err).Str("event", what).Uint64("frame", uint64(f)).Msg("sink handler failed")
	}
}
