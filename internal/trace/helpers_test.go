package trace

import (
	"fmt"
	"sync"

	"github.com/coral-mesh/remora/internal/frame"
)

// stubPolicy counts matcher calls and delegates to configurable funcs.
type stubPolicy struct {
	mu         sync.Mutex
	matchCalls map[string]int
	matchFn    func(path string) (bool, error)
	exclFn     func(name string) (bool, error)
}

func newStubPolicy() *stubPolicy {
	return &stubPolicy{
		matchCalls: make(map[string]int),
		matchFn:    func(string) (bool, error) { return true, nil },
		exclFn:     func(string) (bool, error) { return false, nil },
	}
}

func (p *stubPolicy) MatchFilename(path string) (bool, error) {
	p.mu.Lock()
	p.matchCalls[path]++
	p.mu.Unlock()
	return p.matchFn(path)
}

func (p *stubPolicy) IsExcludedFunction(name string) (bool, error) {
	return p.exclFn(name)
}

func (p *stubPolicy) calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchCalls[path]
}

// recordingSink appends a line per handled event and can fail on demand.
type recordingSink struct {
	mu      sync.Mutex
	started int
	stopped int
	events  []string
	fail    map[string]error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{fail: make(map[string]error)}
}

func (s *recordingSink) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, line)
}

func (s *recordingSink) failure(what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail[what]
}

func (s *recordingSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.fail["start"]
}

func (s *recordingSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return s.fail["stop"]
}

func (s *recordingSink) HandleCall(f frame.Frame) error {
	s.record(fmt.Sprintf("call %d", f))
	return s.failure("call")
}

func (s *recordingSink) HandleReturn(f frame.Frame, v frame.Value) error {
	s.record(fmt.Sprintf("return %d %v", f, v))
	return s.failure("return")
}

func (s *recordingSink) HandleLine(f frame.Frame) error {
	s.record(fmt.Sprintf("line %d", f))
	return s.failure("line")
}

func (s *recordingSink) HandleException(f frame.Frame, exc ExceptionInfo) error {
	s.record(fmt.Sprintf("exception %d %v", f, exc.Type))
	return s.failure("exception")
}

func (s *recordingSink) HandleOpcode(f frame.Frame, ev OpcodeEvent) error {
	if ev.Kind == OpAssign {
		s.record(fmt.Sprintf("assign %d %s=%v", f, ev.Name, ev.Value))
	} else {
		s.record(fmt.Sprintf("invoke %d %v%v method=%v", f, ev.Callable, ev.Args, ev.IsMethod))
	}
	return s.failure("opcode")
}

func (s *recordingSink) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// fakeRuntime records hook installation state.
type fakeRuntime struct {
	mu         sync.Mutex
	hook       Hook
	installs   int
	uninstalls int
	installErr error
}

func (r *fakeRuntime) Install(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installErr != nil {
		return r.installErr
	}
	r.hook = h
	r.installs++
	return nil
}

func (r *fakeRuntime) Uninstall() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = nil
	r.uninstalls++
	return nil
}

func (r *fakeRuntime) installed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hook != nil
}
