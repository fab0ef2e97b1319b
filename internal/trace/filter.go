package trace

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
)

// PathFilter memoizes the per-path inclusion decision for the lifetime
// of a tracing session. A path's decision is immutable once cached; the
// policy collaborator is consulted at most once per path unless a call
// fails and failure caching is off.
type PathFilter struct {
	policy        Policy
	layout        frame.Layout
	logger        zerolog.Logger
	cacheFailures bool

	mu        sync.Mutex
	decisions map[string]bool
}

// NewPathFilter creates a path filter over the given policy and layout.
// When cacheFailures is set, a failed matcher call is cached as a
// permanent exclusion instead of being retried on next sight of the path.
func NewPathFilter(policy Policy, layout frame.Layout, cacheFailures bool, logger zerolog.Logger) *PathFilter {
	return &PathFilter{
		policy:        policy,
		layout:        layout,
		logger:        logger.With().Str("component", "path_filter").Logger(),
		cacheFailures: cacheFailures,
		decisions:     make(map[string]bool),
	}
}

// Decide reports whether the frame's originating source path is included.
// On a negative decision it additionally asks the layout to stop emitting
// per-line events for this frame, so the runtime skips code known to be
// uninteresting. The collaborator call runs outside the cache lock;
// concurrent first sightings of a path may race to resolve it, but the
// matcher is deterministic so they converge on one cached boolean.
func (pf *PathFilter) Decide(f frame.Frame) bool {
	path, err := pf.layout.Filename(f)
	if err != nil {
		return false
	}

	pf.mu.Lock()
	included, hit := pf.decisions[path]
	pf.mu.Unlock()

	if hit {
		if !included {
			pf.disableLines(f)
		}
		return included
	}

	included, err = pf.policy.MatchFilename(path)
	if err != nil {
		pf.logger.Debug().Err(err).Str("path", path).Msg("filename matcher failed, excluding for this call")
		if !pf.cacheFailures {
			return false
		}
		included = false
	}

	pf.mu.Lock()
	pf.decisions[path] = included
	pf.mu.Unlock()

	if !included {
		pf.disableLines(f)
	}
	return included
}

// Cached returns the memoized decision for a path, if any.
func (pf *PathFilter) Cached(path string) (included, ok bool) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	included, ok = pf.decisions[path]
	return included, ok
}

// Reset clears the session cache. Used on session teardown.
func (pf *PathFilter) Reset() {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.decisions = make(map[string]bool)
}

func (pf *PathFilter) disableLines(f frame.Frame) {
	if lt, ok := pf.layout.(frame.LineToggler); ok {
		lt.SetLineEvents(f, false)
	}
}
