package policy

import (
	"context"
	"strings"
	"sync"
)

// CallerGate decides which callers may open a voice session. An empty
// allowlist admits everyone, which is the right default for a single-user
// local deployment.
type CallerGate struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
	denied  map[string]struct{}
}

func NewCallerGate(allowlist []string) *CallerGate {
	g := &CallerGate{
		allowed: make(map[string]struct{}),
		denied:  make(map[string]struct{}),
	}
	for _, caller := range allowlist {
		caller = strings.TrimSpace(caller)
		if caller != "" {
			g.allowed[caller] = struct{}{}
		}
	}
	return g
}

// CanStartSession reports whether the caller is entitled to a session.
func (g *CallerGate) CanStartSession(_ context.Context, callerID string) (bool, error) {
	callerID = strings.TrimSpace(callerID)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, blocked := g.denied[callerID]; blocked {
		return false, nil
	}
	if len(g.allowed) == 0 {
		return true, nil
	}
	_, ok := g.allowed[callerID]
	return ok, nil
}

// Deny blocks a caller at runtime, overriding any allowlist entry.
func (g *CallerGate) Deny(callerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denied[strings.TrimSpace(callerID)] = struct{}{}
}

// Allow lifts a runtime denial.
func (g *CallerGate) Allow(callerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.denied, strings.TrimSpace(callerID))
}
