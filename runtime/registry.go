// Package runtime holds the in-memory connection, room, and presence state
// and the relay that fans events out to connected clients. It owns no
// business rules beyond delivery; authorization and persistence live
// behind the contract interfaces.
package runtime

import (
	"context"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/samber/lo"
)

type Set map[domain.ConnectionID]struct{}

type registration struct {
	user domain.UserID
	sink contract.EventSink
}

// Registry maps users to their live connections and each connection to its
// outbound sink. A user may hold several simultaneous connections
// (multiple devices or tabs); each connection belongs to exactly one user
// for its whole lifetime.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]Set
	byConn map[domain.ConnectionID]registration
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]Set),
		byConn: make(map[domain.ConnectionID]registration),
	}
}

// Register records a live connection for a user. Registering twice under
// the same id replaces the sink; when the owner changed, the previous
// owner's entry is dropped so the user index never references a
// connection it no longer owns.
func (r *Registry) Register(user domain.UserID, conn domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[conn]; ok && prev.user != user {
		if conns, ok := r.byUser[prev.user]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(r.byUser, prev.user)
			}
		}
	}
	r.byConn[conn] = registration{user: user, sink: sink}

	if _, ok := r.byUser[user]; !ok {
		r.byUser[user] = make(Set)
	}
	r.byUser[user][conn] = struct{}{}
}

// Unregister removes a connection and reports which user owned it.
// A second call for the same id returns ErrNotFound and mutates nothing,
// so a duplicate disconnect can never decrement the presence count twice.
func (r *Registry) Unregister(conn domain.ConnectionID) (domain.UserID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byConn[conn]
	if !ok {
		return "", errors.ErrNotFound
	}
	delete(r.byConn, conn)

	if conns, ok := r.byUser[reg.user]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.byUser, reg.user)
		}
	}
	return reg.user, nil
}

// UserOf resolves the owner of a connection.
func (r *Registry) UserOf(conn domain.ConnectionID) (domain.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.byConn[conn]
	if !ok {
		return "", errors.ErrNotFound
	}
	return reg.user, nil
}

// ConnectionsOf returns the live connections of a user. Nil when offline.
func (r *Registry) ConnectionsOf(user domain.UserID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[user]
	if !ok {
		return nil
	}
	return lo.Keys(conns)
}

// ConnectionsExcept returns every live connection not owned by the given
// user, used to broadcast presence changes to interested peers.
func (r *Registry) ConnectionsExcept(user domain.UserID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ConnectionID
	for c, reg := range r.byConn {
		if reg.user == user {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Send pushes one event to one connection. Unknown ids yield
// ErrDisconnected: the recipient raced away mid fan-out, which is a
// non-fatal, locally handled condition that only drops that recipient.
func (r *Registry) Send(ctx context.Context, conn domain.ConnectionID, e event.OutboundEvent) error {
	r.mu.RLock()
	reg, ok := r.byConn[conn]
	r.mu.RUnlock()

	if !ok {
		return errors.ErrDisconnected
	}
	return reg.sink.Consume(ctx, e)
}

// CountConnections reports the number of live connections.
func (r *Registry) CountConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// CountUsers reports the number of users with at least one connection.
func (r *Registry) CountUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
