package authflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/notification"
	"github.com/npmart/storefront/internal/otp"
)

// Registry owns the live flows of all sessions. Flows not touched for longer
// than the idle window are dropped by Sweep.
type Registry struct {
	mu    sync.Mutex
	flows map[string]*registered
	deps  *Deps
	now   func() time.Time
}

type registered struct {
	flow     *Flow
	lastSeen time.Time
}

// NewRegistry builds a registry. Missing dispatcher or verifier default to
// the non-verifying pair.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Verifier == nil {
		deps.Verifier = otp.AcceptAny{}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = otp.NewNotifyDispatcher(notification.NewLoggerNotifier(deps.Logger), deps.Logger)
	}
	return &Registry{flows: make(map[string]*registered), deps: &deps, now: time.Now}
}

// Start opens a fresh flow at the phone step reading the country from src.
func (r *Registry) Start(sessionID string, src locale.Source) *Flow {
	f := newFlow(uuid.NewString(), sessionID, src, r.deps)
	r.mu.Lock()
	r.flows[f.id] = &registered{flow: f, lastSeen: r.now()}
	r.mu.Unlock()
	return f
}

// Get returns a live flow.
func (r *Registry) Get(id string) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	e.lastSeen = r.now()
	return e.flow, nil
}

// Remove forgets a flow.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, id)
}

// Len reports the number of live flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Sweep drops flows idle for longer than idle. Flows with I/O in flight are
// kept until it settles.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	dropped := 0
	for id, e := range r.flows {
		if e.lastSeen.After(cutoff) || e.flow.isBusy() {
			continue
		}
		delete(r.flows, id)
		dropped++
	}
	return dropped
}
