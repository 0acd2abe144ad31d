package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection state machine:
// Connecting -> Active -> Closed, Closed terminal.
type Session struct {
	id        domain.ConnectionID
	user      domain.UserID
	sink      contract.EventSink
	state     atomic.Int32
	closeOnce sync.Once
}

func (s *Session) ID() domain.ConnectionID { return s.id }
func (s *Session) User() domain.UserID     { return s.user }
func (s *Session) State() SessionState     { return SessionState(s.state.Load()) }

// Lifecycle drives connection sessions through their states and dispatches
// inbound commands to the registry, room table, and relay. It is the only
// component that mutates all three, and always in the same order:
// registry, rooms, presence on connect; rooms, registry, presence on close.
type Lifecycle struct {
	log        *slog.Logger
	registry   *Registry
	rooms      *RoomTable
	presence   *PresenceTracker
	relay      *Relay
	authorizer contract.Authorizer // optional, nil allows every join
	recorder   contract.Recorder   // optional, keeps last-seen on offline
}

func NewLifecycle(log *slog.Logger, registry *Registry, rooms *RoomTable,
	presence *PresenceTracker, relay *Relay,
	authorizer contract.Authorizer, recorder contract.Recorder) *Lifecycle {
	return &Lifecycle{
		log:        log,
		registry:   registry,
		rooms:      rooms,
		presence:   presence,
		relay:      relay,
		authorizer: authorizer,
		recorder:   recorder,
	}
}

// Accept attaches an already-authenticated principal to a fresh transport
// session and registers it. An empty principal means identity attachment
// failed upstream: the session goes straight to Closed and an error is
// returned so the transport can drop the socket.
func (l *Lifecycle) Accept(ctx context.Context, user domain.UserID, sink contract.EventSink) (*Session, error) {
	sess := &Session{id: domain.NewConnectionID(), user: user, sink: sink}

	if user == "" {
		sess.state.Store(int32(StateClosed))
		return nil, errors.ErrUnauthorized
	}

	l.registry.Register(user, sess.id, sink)
	sess.state.Store(int32(StateActive))

	if change := l.presence.OnConnect(user); change != nil {
		peers := l.relay.BroadcastPresence(ctx, *change)
		l.log.Info("User online", "user", user, "notified", peers)
	}
	l.log.Debug(fmt.Sprintf("Connection %s active for user %s", sess.id, user))
	return sess, nil
}

// Handle dispatches one inbound command from an Active session.
func (l *Lifecycle) Handle(ctx context.Context, sess *Session, cmd domain.Command) error {
	if sess.State() != StateActive {
		return errors.ErrDisconnected
	}

	switch c := cmd.(type) {
	case domain.JoinRoomCommand:
		return l.join(ctx, sess, c.Room)
	case domain.LeaveRoomCommand:
		l.rooms.Leave(c.Room, sess.id)
		return nil
	case domain.RoomMessageCommand:
		_, err := l.relay.PublishToRoom(ctx, c.Room, sess.id, c.Payload)
		return err
	case domain.DirectMessageCommand:
		_, err := l.relay.PublishToUser(ctx, c.Target, sess.user, c.Payload)
		return err
	default:
		return fmt.Errorf("unknown command %q: %w", cmd.CommandName(), errors.ErrNotFound)
	}
}

func (l *Lifecycle) join(ctx context.Context, sess *Session, room domain.RoomID) error {
	if l.authorizer != nil && !l.authorizer.CanJoin(ctx, sess.user, room) {
		rejection := event.JoinRejected{Room: room, Reason: "not a member of this room"}
		if err := sess.sink.Consume(ctx, rejection); err != nil {
			l.log.Debug("Could not deliver join rejection", "connection", sess.id, "error", err)
		}
		return errors.ErrUnauthorized
	}
	l.rooms.Join(room, sess.id)

	// Close may have purged the session between the Active check and the
	// join landing. The state store precedes the purge in Close, so seeing
	// Active here guarantees the purge ran after this join; seeing Closed
	// means the entry may have outlived the purge and must be removed.
	if sess.State() == StateClosed {
		l.rooms.PurgeConnection(sess.id)
		return errors.ErrDisconnected
	}
	return nil
}

// Close tears a session down: room purge first, then registry removal,
// then the presence recount and its broadcast. Duplicate close signals are
// no-ops; Close is safe to call concurrently with an in-flight fan-out
// targeting this session.
func (l *Lifecycle) Close(ctx context.Context, sess *Session) {
	sess.closeOnce.Do(func() {
		sess.state.Store(int32(StateClosed))

		l.rooms.PurgeConnection(sess.id)

		user, err := l.registry.Unregister(sess.id)
		if err != nil {
			// Never registered (identity attachment failed); nothing to recount.
			return
		}

		if change := l.presence.OnDisconnect(user); change != nil {
			if l.recorder != nil {
				if err := l.recorder.RecordLastSeen(ctx, user, change.At); err != nil {
					l.log.Warn("Could not persist last-seen", "user", user, "error", err)
				}
			}
			peers := l.relay.BroadcastPresence(ctx, *change)
			l.log.Info("User offline", "user", user, "notified", peers)
		}
		l.log.Debug(fmt.Sprintf("Connection %s closed for user %s", sess.id, user))
	})
}
