package trace

// Policy is the external collaborator deciding what is worth tracing.
// Both methods may fail; a failure degrades to a conservative "no" for
// that single call and is never treated as a cached decision unless the
// dispatcher is configured to do so.
type Policy interface {
	// MatchFilename reports whether code from the given source path
	// should be traced.
	MatchFilename(path string) (bool, error)

	// IsExcludedFunction reports whether an invocation of the named
	// function should be suppressed entirely.
	IsExcludedFunction(name string) (bool, error)
}
