package textures

import (
	"sync"

	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// State of the scheduler.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Session is the only mutable state of a run: the analysis store, the child
// process and the latest pass. The scheduler writes it; the status server
// reads it through Snapshot.
type Session struct {
	mu       sync.RWMutex
	store    domain.Store
	process  domain.Process
	state    State
	lastPass *history.Pass
	passes   int
}

// NewSession starts in the stopped state with an empty store.
func NewSession() *Session {
	return &Session{store: domain.Store{}, state: StateStopped}
}

func (s *Session) setStore(store domain.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

func (s *Session) setProcess(p domain.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process = p
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) recordPass(p *history.Pass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPass = p
	s.passes++
}

// Store returns the analysis store. Callers must not mutate it.
func (s *Session) Store() domain.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Process returns the launched process, or nil.
func (s *Session) Process() domain.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.process
}

// Status is a point-in-time view of a session.
type Status struct {
	State        State         `json:"state"`
	ProcessAlive bool          `json:"process_alive"`
	PID          int           `json:"pid,omitempty"`
	Textures     int           `json:"textures"`
	Passes       int           `json:"passes"`
	LastPass     *history.Pass `json:"last_pass,omitempty"`
}

// Snapshot copies the session for concurrent readers.
func (s *Session) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		State:    s.state,
		Textures: len(s.store),
		Passes:   s.passes,
	}
	if s.process != nil {
		st.ProcessAlive = s.process.Alive()
		st.PID = s.process.PID()
	}
	if s.lastPass != nil {
		cp := *s.lastPass
		cp.Outcomes = append([]history.Outcome(nil), s.lastPass.Outcomes...)
		st.LastPass = &cp
	}
	return st
}
