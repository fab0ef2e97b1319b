// Package sink implements the consumers of reconstructed trace events:
// a zerolog console sink, a WebSocket stream for live subscribers, a
// DuckDB recorder for post-mortem replay, and an ordered fan-out
// combining them.
package sink
