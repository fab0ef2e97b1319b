package trace

import (
	"sync"

	"github.com/coral-mesh/remora/internal/frame"
)

// Registry is the set of frames currently accepted for tracing: entered,
// not yet returned. Frames are keyed by identity only.
type Registry struct {
	mu     sync.Mutex
	frames map[frame.Frame]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{frames: make(map[frame.Frame]struct{})}
}

// Add marks a frame as actively traced.
func (r *Registry) Add(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[f] = struct{}{}
}

// Contains reports whether the frame is actively traced.
func (r *Registry) Contains(f frame.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.frames[f]
	return ok
}

// Remove unregisters the frame and reports whether it was present, so a
// check-and-remove stays one atomic step. Removing an absent frame is a
// no-op.
func (r *Registry) Remove(f frame.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.frames[f]
	if ok {
		delete(r.frames, f)
	}
	return ok
}

// Len returns the number of actively traced frames.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
