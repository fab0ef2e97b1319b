package sink

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/remora/internal/frame"
	"github.com/coral-mesh/remora/internal/safe"
	"github.com/coral-mesh/remora/internal/trace"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamSendBuffer   = 64
)

// StreamConfig configures the WebSocket stream sink.
type StreamConfig struct {
	// Listen is the address the subscriber endpoint binds to.
	Listen string
}

// DefaultStreamConfig returns a loopback-only listener.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{Listen: "127.0.0.1:8790"}
}

// wireEvent is the JSON shape broadcast to subscribers. Values are
// rendered to strings through the layout before leaving the process.
type wireEvent struct {
	Kind     string   `json:"kind"`
	Frame    int64    `json:"frame"`
	Function string   `json:"function,omitempty"`
	File     string   `json:"file,omitempty"`
	Name     string   `json:"name,omitempty"`
	Value    string   `json:"value,omitempty"`
	Callable string   `json:"callable,omitempty"`
	Args     []string `json:"args,omitempty"`
	Method   bool     `json:"method,omitempty"`
	ExcType  string   `json:"exception_type,omitempty"`
}

// Stream broadcasts events to live WebSocket subscribers. A subscriber
// that cannot keep up is dropped rather than allowed to stall the
// traced program.
type Stream struct {
	cfg      StreamConfig
	layout   frame.Layout
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewStream creates the stream sink.
func NewStream(cfg StreamConfig, layout frame.Layout, logger zerolog.Logger) (*Stream, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("stream sink requires a listen address")
	}
	return &Stream{
		cfg:     cfg,
		layout:  layout,
		logger:  logger.With().Str("component", "stream-sink").Logger(),
		clients: make(map[*websocket.Conn]chan []byte),
	}, nil
}

// Start binds the listener and serves subscribers in the background.
func (s *Stream) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("stream sink listen on %s: %w", s.cfg.Listen, err)
	}
	s.server = &http.Server{Handler: s}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("stream server exited")
		}
	}()
	s.logger.Info().Str("listen", ln.Addr().String()).Msg("stream sink listening")
	return nil
}

// Stop closes the listener and disconnects every subscriber.
func (s *Stream) Stop() error {
	if s.server != nil {
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("close stream server: %w", err)
		}
	}
	s.mu.Lock()
	for conn, ch := range s.clients {
		delete(s.clients, conn)
		close(ch)
	}
	s.mu.Unlock()
	return nil
}

// ServeHTTP upgrades a subscriber connection and pumps events to it
// until it disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	ch := make(chan []byte, streamSendBuffer)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	go s.writePump(conn, ch)

	// Subscribers send nothing meaningful; the read loop only notices
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

func (s *Stream) writePump(conn *websocket.Conn, ch chan []byte) {
	defer conn.Close()
	for msg := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(conn)
			return
		}
	}
}

func (s *Stream) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(ch)
	}
}

func (s *Stream) broadcast(ev wireEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// Full buffer means a stalled subscriber.
			delete(s.clients, conn)
			close(ch)
			s.logger.Warn().Msg("dropped slow subscriber")
		}
	}
	return nil
}

// SubscriberCount reports how many clients are currently connected.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Stream) event(f frame.Frame, kind string) wireEvent {
	id, _ := safe.Uint64ToInt64(uint64(f))
	ev := wireEvent{Kind: kind, Frame: id}
	if name, err := s.layout.FunctionName(f); err == nil {
		ev.Function = name
	}
	if file, err := s.layout.Filename(f); err == nil {
		ev.File = file
	}
	return ev
}

func (s *Stream) HandleCall(f frame.Frame) error {
	return s.broadcast(s.event(f, "call"))
}

func (s *Stream) HandleReturn(f frame.Frame, value frame.Value) error {
	ev := s.event(f, "return")
	ev.Value = s.layout.Describe(value)
	return s.broadcast(ev)
}

func (s *Stream) HandleLine(f frame.Frame) error {
	return s.broadcast(s.event(f, "line"))
}

func (s *Stream) HandleException(f frame.Frame, exc trace.ExceptionInfo) error {
	ev := s.event(f, "exception")
	ev.ExcType = s.layout.Describe(exc.Type)
	ev.Value = s.layout.Describe(exc.Value)
	return s.broadcast(ev)
}

func (s *Stream) HandleOpcode(f frame.Frame, opEv trace.OpcodeEvent) error {
	switch opEv.Kind {
	case trace.OpAssign:
		ev := s.event(f, "assign")
		ev.Name = opEv.Name
		ev.Value = s.layout.Describe(opEv.Value)
		return s.broadcast(ev)
	case trace.OpInvoke:
		ev := s.event(f, "invoke")
		ev.Callable = s.layout.Describe(opEv.Callable)
		ev.Method = opEv.IsMethod
		ev.Args = make([]string, len(opEv.Args))
		for i, a := range opEv.Args {
			ev.Args[i] = s.layout.Describe(a)
		}
		return s.broadcast(ev)
	}
	return nil
}
