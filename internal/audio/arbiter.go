package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseCategory names one use of the shared physical audio device.
type LeaseCategory string

const (
	CategoryCapture          LeaseCategory = "capture"
	CategoryPrimaryPlayback  LeaseCategory = "primary_playback"
	CategoryFallbackPlayback LeaseCategory = "fallback_playback"
)

// Default priorities, highest first: live capture must never lose the device
// to playback, and primary synthesized speech outranks fallback beeps.
const (
	PriorityCapture          = 30
	PriorityPrimaryPlayback  = 20
	PriorityFallbackPlayback = 10
)

var ErrLeaseDenied = errors.New("audio session lease denied")

// Lease is a revocable grant of exclusive device access for one category.
// Holders must watch Revoked and stop using the device when it fires.
type Lease struct {
	ID         string
	Category   LeaseCategory
	Priority   int
	AcquiredAt time.Time

	revoked chan struct{}
}

// Revoked is closed when a higher-priority request preempts this lease.
func (l *Lease) Revoked() <-chan struct{} {
	return l.revoked
}

// Arbiter serializes access to the one physical audio device. It is the sole
// authority over leases; no component touches audio hardware without one.
// Arbiters are plain values constructed per pipeline so tests can run many in
// isolation.
type Arbiter struct {
	mu   sync.Mutex
	held map[LeaseCategory]*Lease
}

func NewArbiter() *Arbiter {
	return &Arbiter{held: make(map[LeaseCategory]*Lease)}
}

// Acquire grants a lease for the category, preempting a lower-priority holder
// by closing its revocation channel first. Equal or higher priority holders
// win: the request is denied until they release voluntarily.
func (a *Arbiter) Acquire(category LeaseCategory, priority int) (*Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current, ok := a.held[category]; ok {
		if priority <= current.Priority {
			return nil, ErrLeaseDenied
		}
		close(current.revoked)
		delete(a.held, category)
	}

	lease := &Lease{
		ID:         uuid.NewString(),
		Category:   category,
		Priority:   priority,
		AcquiredAt: time.Now(),
		revoked:    make(chan struct{}),
	}
	a.held[category] = lease
	return lease, nil
}

// Release returns the lease. Releasing an already-revoked or stale lease is a
// no-op so holders can release unconditionally in defers.
func (a *Arbiter) Release(lease *Lease) {
	if lease == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, ok := a.held[lease.Category]; ok && current.ID == lease.ID {
		delete(a.held, lease.Category)
	}
}

// ReleaseAll revokes and drops every outstanding lease. Used by pipeline stop
// to guarantee no dangling hardware handle.
func (a *Arbiter) ReleaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for category, lease := range a.held {
		close(lease.revoked)
		delete(a.held, category)
	}
}

// Holder reports the active lease ID for a category, if any.
func (a *Arbiter) Holder(category LeaseCategory) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lease, ok := a.held[category]
	if !ok {
		return "", false
	}
	return lease.ID, true
}
