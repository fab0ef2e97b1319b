package sink

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	duckdbDriver "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	rerrors "github.com/coral-mesh/remora/internal/errors"
	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/safe"
	"github.com/coral-mesh/remora/internal/trace"
)

// Events buffered in one transaction before committing. Keeps the hot
// path on appends instead of per-event fsyncs.
const recorderFlushEvery = 256

const recorderSchema = `
CREATE TABLE IF NOT EXISTS trace_sessions (
	id       VARCHAR PRIMARY KEY,
	root     VARCHAR NOT NULL,
	started  TIMESTAMP NOT NULL,
	stopped  TIMESTAMP
);
CREATE TABLE IF NOT EXISTS trace_events (
	session        VARCHAR NOT NULL,
	seq            BIGINT NOT NULL,
	ts             TIMESTAMP NOT NULL,
	kind           VARCHAR NOT NULL,
	frame          BIGINT NOT NULL,
	function_name  VARCHAR,
	file           VARCHAR,
	symbol         VARCHAR,
	value          VARCHAR,
	callable       VARCHAR,
	argc           INTEGER,
	method         BOOLEAN
);
`

const recorderInsert = `
INSERT INTO trace_events
	(session, seq, ts, kind, frame, function_name, file, symbol, value, callable, argc, method)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// OpenDB opens a DuckDB database file for recording or replay.
func OpenDB(path string) (*sql.DB, error) {
	connector, err := duckdbDriver.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	return sql.OpenDB(connector), nil
}

// RecorderConfig configures the DuckDB recorder sink.
type RecorderConfig struct {
	// Path is the database file. Empty records into an in-memory
	// database, useful only for tests.
	Path string
}

// Recorder persists a session's events into DuckDB for post-mortem
// replay. One row in trace_sessions per session, append-only rows in
// trace_events written through a prepared statement inside periodic
// transactions.
type Recorder struct {
	cfg    RecorderConfig
	layout frame.Layout
	logger zerolog.Logger

	id   uuid.UUID
	root string

	// Events arrive from whatever thread the traced program runs on.
	mu      sync.Mutex
	db      *sql.DB
	tx      *sql.Tx
	stmt    *sql.Stmt
	seq     int64
	pending int
}

// NewRecorder creates a recorder for one session anchored at root.
func NewRecorder(cfg RecorderConfig, root string, layout frame.Layout, logger zerolog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		layout: layout,
		logger: logger.With().Str("component", "recorder-sink").Logger(),
		id:     uuid.New(),
		root:   root,
	}
}

// SessionID returns the identifier of the recorded session.
func (r *Recorder) SessionID() string {
	return r.id.String()
}

// Start opens the database, ensures the schema and registers the
// session row.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := OpenDB(r.cfg.Path)
	if err != nil {
		return err
	}
	if _, err := db.Exec(recorderSchema); err != nil {
		rerrors.DeferClose(r.logger, db, "close recorder database")
		return fmt.Errorf("create recorder schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO trace_sessions (id, root, started) VALUES (?, ?, ?)`,
		r.id.String(), r.root, time.Now().UTC(),
	); err != nil {
		rerrors.DeferClose(r.logger, db, "close recorder database")
		return fmt.Errorf("register session: %w", err)
	}
	r.db = db
	if err := r.begin(); err != nil {
		rerrors.DeferClose(r.logger, db, "close recorder database")
		r.db = nil
		return err
	}
	r.logger.Info().Str("session", r.id.String()).Str("path", r.cfg.Path).Msg("recording session")
	return nil
}

// Stop flushes the open transaction, stamps the session as stopped and
// closes the database.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	defer func() {
		rerrors.DeferClose(r.logger, r.db, "close recorder database")
		r.db = nil
	}()

	if err := r.flush(); err != nil {
		return err
	}
	if _, err := r.db.Exec(
		`UPDATE trace_sessions SET stopped = ? WHERE id = ?`,
		time.Now().UTC(), r.id.String(),
	); err != nil {
		return fmt.Errorf("stamp session stopped: %w", err)
	}
	return nil
}

func (r *Recorder) begin() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin recorder transaction: %w", err)
	}
	stmt, err := tx.Prepare(recorderInsert)
	if err != nil {
		rerrors.DeferRollback(r.logger, tx)
		return fmt.Errorf("prepare event insert: %w", err)
	}
	r.tx = tx
	r.stmt = stmt
	r.pending = 0
	return nil
}

func (r *Recorder) flush() error {
	if r.tx == nil {
		return nil
	}
	tx := r.tx
	r.tx = nil
	r.stmt = nil
	defer rerrors.DeferRollback(r.logger, tx)
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recorder transaction: %w", err)
	}
	return nil
}

// eventRow holds the nullable columns of one event.
type eventRow struct {
	kind     string
	frame    int64
	function any
	file     any
	symbol   any
	value    any
	callable any
	argc     any
	method   any
}

func (r *Recorder) record(row eventRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx == nil {
		if r.db == nil {
			return fmt.Errorf("recorder not started")
		}
		if err := r.begin(); err != nil {
			return err
		}
	}
	r.seq++
	if _, err := r.stmt.Exec(
		r.id.String(), r.seq, time.Now().UTC(),
		row.kind, row.frame,
		row.function, row.file, row.symbol, row.value, row.callable,
		row.argc, row.method,
	); err != nil {
		return fmt.Errorf("append %s event: %w", row.kind, err)
	}
	r.pending++
	if r.pending >= recorderFlushEvery {
		return r.flush()
	}
	return nil
}

func (r *Recorder) row(f frame.Frame, kind string) eventRow {
	id, _ := safe.Uint64ToInt64(uint64(f))
	row := eventRow{kind: kind, frame: id}
	if name, err := r.layout.FunctionName(f); err == nil {
		row.function = name
	}
	if file, err := r.layout.Filename(f); err == nil {
		row.file = file
	}
	return row
}

func (r *Recorder) HandleCall(f frame.Frame) error {
	return r.record(r.row(f, "call"))
}

func (r *Recorder) HandleReturn(f frame.Frame, value frame.Value) error {
	row := r.row(f, "return")
	row.value = r.layout.Describe(value)
	return r.record(row)
}

func (r *Recorder) HandleLine(f frame.Frame) error {
	return r.record(r.row(f, "line"))
}

func (r *Recorder) HandleException(f frame.Frame, exc trace.ExceptionInfo) error {
	row := r.row(f, "exception")
	row.symbol = r.layout.Describe(exc.Type)
	row.value = r.layout.Describe(exc.Value)
	return r.record(row)
}

func (r *Recorder) HandleOpcode(f frame.Frame, ev trace.OpcodeEvent) error {
	switch ev.Kind {
	case trace.OpAssign:
		row := r.row(f, "assign")
		row.symbol = ev.Name
		row.value = r.layout.Describe(ev.Value)
		return r.record(row)
	case trace.OpInvoke:
		row := r.row(f, "invoke")
		row.callable = r.layout.Describe(ev.Callable)
		argc, clamped := safe.IntToInt32(len(ev.Args))
		if clamped {
			r.logger.Warn().Int("args", len(ev.Args)).Msg("argument count clamped")
		}
		row.argc = argc
		row.method = ev.IsMethod
		return r.record(row)
	}
	return nil
}

// Session is one recorded tracing session.
type Session struct {
	ID      string
	Root    string
	Started time.Time
	Stopped *time.Time
}

// Event is one replayed row of a recorded session.
type Event struct {
	Seq      int64
	At       time.Time
	Kind     string
	Frame    int64
	Function string
	File     string
	Symbol   string
	Value    string
	Callable string
	Argc     int32
	Method   bool
}

// Sessions lists recorded sessions, newest first.
func Sessions(db *sql.DB) ([]Session, error) {
	rows, err := db.Query(`SELECT id, root, started, stopped FROM trace_sessions ORDER BY started DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var stopped sql.NullTime
		if err := rows.Scan(&s.ID, &s.Root, &s.Started, &stopped); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if stopped.Valid {
			t := stopped.Time
			s.Stopped = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SessionEvents replays the events of one session in recorded order.
func SessionEvents(db *sql.DB, sessionID string) ([]Event, error) {
	rows, err := db.Query(`
		SELECT seq, ts, kind, frame, function_name, file, symbol, value, callable, argc, method
		FROM trace_events WHERE session = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var function, file, symbol, value, callable sql.NullString
		var argc sql.NullInt32
		var method sql.NullBool
		if err := rows.Scan(&e.Seq, &e.At, &e.Kind, &e.Frame,
			&function, &file, &symbol, &value, &callable, &argc, &method); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Function = function.String
		e.File = file.String
		e.Symbol = symbol.String
		e.Value = value.String
		e.Callable = callable.String
		e.Argc = argc.Int32
		e.Method = method.Bool
		out = append(out, e)
	}
	return out, rows.Err()
}
