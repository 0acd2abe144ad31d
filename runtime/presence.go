package runtime

import (
	"sync"
	"time"

	"chat-relay/domain"
)

type presenceEntry struct {
	count       int
	lastChanged time.Time
}

// PresenceTracker derives online/offline status from connection-count
// transitions. Only crossing the zero boundary produces a StatusChange:
// a user going from three connections to two to one emits nothing, which
// keeps multi-device users from flooding their peers with noise.
//
// Entries are retained after the last disconnect (marked offline) so the
// last-changed marker keeps "last seen" semantics for external callers.
type PresenceTracker struct {
	mu      sync.Mutex
	entries map[domain.UserID]*presenceEntry
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{entries: make(map[domain.UserID]*presenceEntry)}
}

// OnConnect bumps the user's connection count and reports a transition
// only when the count crosses 0 -> 1.
func (p *PresenceTracker) OnConnect(user domain.UserID) *domain.StatusChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[user]
	if !ok {
		e = &presenceEntry{}
		p.entries[user] = e
	}
	e.count++
	if e.count != 1 {
		return nil
	}
	e.lastChanged = time.Now().UTC()
	return &domain.StatusChange{User: user, Status: domain.StatusOnline, At: e.lastChanged}
}

// OnDisconnect decrements the count and reports a transition only when it
// reaches zero. Calls for users without live connections are no-ops.
func (p *PresenceTracker) OnDisconnect(user domain.UserID) *domain.StatusChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[user]
	if !ok || e.count == 0 {
		return nil
	}
	e.count--
	if e.count != 0 {
		return nil
	}
	e.lastChanged = time.Now().UTC()
	return &domain.StatusChange{User: user, Status: domain.StatusOffline, At: e.lastChanged}
}

// StatusOf reports the derived status: online iff count > 0.
func (p *PresenceTracker) StatusOf(user domain.UserID) domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[user]; ok && e.count > 0 {
		return domain.StatusOnline
	}
	return domain.StatusOffline
}

// LastChanged reports when the user last crossed the presence boundary.
func (p *PresenceTracker) LastChanged(user domain.UserID) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[user]
	if !ok || e.lastChanged.IsZero() {
		return time.Time{}, false
	}
	return e.lastChanged, true
}

// ConnectionCount reports the live connection count for a user.
func (p *PresenceTracker) ConnectionCount(user domain.UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[user]; ok {
		return e.count
	}
	return 0
}

// OnlineCount reports how many users are currently online.
func (p *PresenceTracker) OnlineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.entries {
		if e.count > 0 {
			n++
		}
	}
	return n
}
