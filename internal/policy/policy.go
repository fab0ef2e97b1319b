// Package policy implements the matching rules a tracing session is
// configured with: which source files are of interest and which function
// names are suppressed. It satisfies trace.Policy.
package policy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Segments of interpreter-managed install trees. A path containing any
// of these is library code, not user code.
var systemPathMarkers = []string{
	"site-packages",
	"dist-packages",
	"lib/python",
}

// Config declares the matching rules for one session.
type Config struct {
	// Root anchors the session. When set, only files under it can match.
	Root string
	// IncludeGlobs are shell-style patterns tried against the full path
	// and against its base name. Empty means every file under Root.
	IncludeGlobs []string
	// ExcludedFunctions suppresses invocations by function name.
	ExcludedFunctions []string
	// IgnoreSystemPaths rejects interpreter install trees
	// (site-packages and friends) regardless of the globs.
	IgnoreSystemPaths bool
}

// DefaultConfig returns rules that trace all user code under the
// current directory.
func DefaultConfig() Config {
	return Config{
		Root:              ".",
		IgnoreSystemPaths: true,
	}
}

// Rules is a deterministic trace.Policy. All matching state is fixed at
// construction; the methods perform no I/O and are safe for concurrent
// use.
type Rules struct {
	root     string
	globs    []string
	excluded map[string]struct{}
	noSystem bool
}

// New validates the configured globs and builds the rule set.
func New(cfg Config) (*Rules, error) {
	root := cfg.Root
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve policy root %q: %w", root, err)
		}
		root = abs
	}

	for _, g := range cfg.IncludeGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", g, err)
		}
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedFunctions))
	for _, name := range cfg.ExcludedFunctions {
		excluded[name] = struct{}{}
	}

	return &Rules{
		root:     root,
		globs:    append([]string(nil), cfg.IncludeGlobs...),
		excluded: excluded,
		noSystem: cfg.IgnoreSystemPaths,
	}, nil
}

// MatchFilename reports whether a source file is of interest.
//
// Synthetic filenames (the runtime's "<string>", "<frozen ...>" forms)
// never match. System install trees are rejected when configured. The
// remaining candidates must live under the root and, when include
// patterns are present, satisfy at least one of them.
func (r *Rules) MatchFilename(path string) (bool, error) {
	if path == "" || strings.HasPrefix(path, "<") {
		return false, nil
	}

	if r.noSystem && isSystemPath(path) {
		return false, nil
	}

	if r.root != "" && !underRoot(r.root, path) {
		return false, nil
	}

	if len(r.globs) == 0 {
		return true, nil
	}
	base := filepath.Base(path)
	for _, g := range r.globs {
		// Pattern validity was checked in New; Match cannot fail here.
		if ok, _ := filepath.Match(g, path); ok {
			return true, nil
		}
		if ok, _ := filepath.Match(g, base); ok {
			return true, nil
		}
	}
	return false, nil
}

// IsExcludedFunction reports whether invocations of the named function
// are suppressed.
func (r *Rules) IsExcludedFunction(name string) (bool, error) {
	_, ok := r.excluded[name]
	return ok, nil
}

func isSystemPath(path string) bool {
	norm := filepath.ToSlash(path)
	for _, marker := range systemPathMarkers {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
