package locale

import "sync"

// Source exposes the currently active context for a session.
type Source interface {
	Active() Country
}

// State is the per-session resolution state. Active always holds a registry
// entry; while resolution is pending it is the default context.
type State struct {
	mu         sync.RWMutex
	sessionID  string
	active     Country
	resolving  bool
	resolved   bool
	overridden bool
	done       chan struct{}
}

// NewState creates the resolution state for a session.
func NewState(sessionID string) *State {
	return &State{
		sessionID: sessionID,
		active:    Default(),
		resolving: true,
		done:      make(chan struct{}),
	}
}

// SessionID returns the session the state belongs to.
func (s *State) SessionID() string {
	return s.sessionID
}

// Active returns the active country context.
func (s *State) Active() Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// IsResolving reports whether the initial resolution is still pending.
func (s *State) IsResolving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolving
}

// Done is closed once the initial resolution has settled.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// inFlight reports whether a resolution run has started and not settled.
func (s *State) inFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved && s.resolving
}

// begin claims the single resolution run for this state.
func (s *State) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return false
	}
	s.resolved = true
	return true
}

// settle applies the resolution outcome and clears the resolving flag. An
// explicit switch made while resolution was pending is kept.
func (s *State) settle(c Country) Country {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolving {
		return s.active
	}
	if !s.overridden {
		s.active = c
	}
	s.resolving = false
	close(s.done)
	return s.active
}

func (s *State) override(c Country) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = c
	s.overridden = true
}
