package locale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDetectTimeout bounds the geolocation chain.
const DefaultDetectTimeout = 5 * time.Second

// ErrInvalidCountryCode is returned when a code is not in the registry.
var ErrInvalidCountryCode = errors.New("invalid country code")

// Resolver decides and overrides the active country context of a session.
type Resolver struct {
	prefs   PreferenceStore
	lookup  CountryLookup
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver wires a resolver. A nil lookup makes every geolocation attempt
// fall back to the default context.
func NewResolver(prefs PreferenceStore, lookup CountryLookup, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultDetectTimeout
	}
	if prefs == nil {
		prefs = NewMemoryPreferenceStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{prefs: prefs, lookup: lookup, timeout: timeout, logger: logger}
}

type detection struct {
	code string
	err  error
}

// Resolve runs the initial resolution for st and returns the active context.
// Only the first call does any work; later calls wait for it to settle (or
// for ctx) and return whatever is active. Failures never escape: they are
// logged and resolve to the default context.
func (r *Resolver) Resolve(ctx context.Context, st *State, locator Locator) Country {
	if !st.begin() {
		select {
		case <-st.Done():
		case <-ctx.Done():
		}
		return st.Active()
	}

	if c, ok := r.storedPreference(ctx, st.SessionID()); ok {
		return st.settle(c)
	}

	if locator == nil || r.lookup == nil {
		r.logger.Debug("locale detection unavailable", slog.String("session_id", st.SessionID()))
		return st.settle(Default())
	}

	detectCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The detector only ever writes to this buffered channel, so a result
	// arriving after the deadline is dropped without touching st.
	result := make(chan detection, 1)
	go func() {
		code, err := r.detect(detectCtx, locator)
		result <- detection{code: code, err: err}
	}()

	var chosen Country
	select {
	case d := <-result:
		chosen = r.choose(st.SessionID(), d)
	case <-detectCtx.Done():
		r.logger.Warn("locale detection timed out",
			slog.String("session_id", st.SessionID()),
			slog.Duration("timeout", r.timeout),
		)
		chosen = Default()
	}
	return st.settle(chosen)
}

func (r *Resolver) detect(ctx context.Context, locator Locator) (string, error) {
	pos, err := locator.CurrentPosition(ctx)
	if err != nil {
		return "", fmt.Errorf("current position: %w", err)
	}
	code, err := r.lookup.CountryCode(ctx, pos)
	if err != nil {
		return "", fmt.Errorf("country lookup: %w", err)
	}
	return code, nil
}

func (r *Resolver) choose(sessionID string, d detection) Country {
	if d.err != nil {
		r.logger.Warn("locale detection failed",
			slog.String("session_id", sessionID),
			slog.Any("error", d.err),
		)
		return Default()
	}
	if Code(d.code) == CodeIndia {
		return MustLookup(CodeIndia)
	}
	r.logger.Debug("locale detected outside india", slog.String("session_id", sessionID), slog.String("country", d.code))
	return Default()
}

func (r *Resolver) storedPreference(ctx context.Context, sessionID string) (Country, bool) {
	code, err := r.prefs.Get(ctx, sessionID)
	if err != nil {
		r.logger.Warn("read locale preference", slog.String("session_id", sessionID), slog.Any("error", err))
		return Country{}, false
	}
	if code == "" {
		return Country{}, false
	}
	c, ok := Lookup(code)
	if !ok {
		r.logger.Debug("ignoring unknown locale preference", slog.String("session_id", sessionID), slog.String("code", code))
	}
	return c, ok
}

// SwitchCountry makes code the active context for st and stores it as the
// session preference. The switch takes effect even when persisting fails;
// the persistence error is still returned.
func (r *Resolver) SwitchCountry(ctx context.Context, st *State, code string) error {
	c, ok := Lookup(code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCountryCode, code)
	}
	st.override(c)
	if err := r.prefs.Set(ctx, st.SessionID(), string(c.Code)); err != nil {
		return fmt.Errorf("persist locale preference: %w", err)
	}
	return nil
}

// ListContexts returns every supported context in registry order.
func (r *Resolver) ListContexts() []Country {
	return All()
}

// IsSellerEligible reports whether seller signup is offered in c.
func IsSellerEligible(c Country) bool {
	return c.SellerSignup
}

// Sessions tracks the resolution state of live sessions. Entries not touched
// for longer than the idle window are dropped by Sweep.
type Sessions struct {
	mu     sync.Mutex
	states map[string]*sessionEntry
	now    func() time.Time
}

type sessionEntry struct {
	state    *State
	lastSeen time.Time
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{states: make(map[string]*sessionEntry), now: time.Now}
}

// Ensure returns the state for id, creating it on first use.
func (s *Sessions) Ensure(id string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[id]
	if !ok {
		e = &sessionEntry{state: NewState(id)}
		s.states[id] = e
	}
	e.lastSeen = s.now()
	return e.state
}

// Get returns the state for id if the session is known.
func (s *Sessions) Get(id string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.state, true
}

// Remove drops the state when its session ends.
func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

// Len reports the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep drops sessions idle for longer than idle, except those with a
// resolution run in flight, and returns how many were dropped.
func (s *Sessions) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	dropped := 0
	for id, e := range s.states {
		if e.lastSeen.After(cutoff) || e.state.inFlight() {
			continue
		}
		delete(s.states, id)
		dropped++
	}
	return dropped
}
