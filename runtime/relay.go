package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/google/uuid"
)

// PayloadFilter rewrites a message payload before fan-out (moderation).
type PayloadFilter interface {
	Apply(payload []byte) []byte
}

// Relay resolves recipient sets and performs best-effort fan-out.
// Delivery is at-most-once: a failed push to one recipient never aborts
// delivery to the rest, and nothing is queued or retried. Durability, when
// wanted, is the Recorder's problem and happens synchronously before any
// push.
//
// Per-room per-sender FIFO holds because every publish call runs on the
// sender's own connection goroutine and each recipient sink is an ordered
// buffer.
type Relay struct {
	log      *slog.Logger
	registry *Registry
	rooms    *RoomTable
	recorder contract.Recorder // optional
	filter   PayloadFilter     // optional
	echoSelf bool
}

func NewRelay(log *slog.Logger, registry *Registry, rooms *RoomTable,
	recorder contract.Recorder, filter PayloadFilter, echoSelf bool) *Relay {
	return &Relay{
		log:      log,
		registry: registry,
		rooms:    rooms,
		recorder: recorder,
		filter:   filter,
		echoSelf: echoSelf,
	}
}

// PublishToRoom fans a payload out to the room's members and returns the
// number of successful pushes. The sender is skipped unless self-echo is
// configured on.
func (r *Relay) PublishToRoom(ctx context.Context, room domain.RoomID,
	sender domain.ConnectionID, payload []byte) (int, error) {
	senderUser, err := r.registry.UserOf(sender)
	if err != nil {
		return 0, err
	}

	if r.filter != nil {
		payload = r.filter.Apply(payload)
	}

	evt := event.RoomMessage{
		ID:      uuid.New(),
		Room:    room,
		Sender:  senderUser,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRoomMessage(ctx, evt); err != nil {
			r.log.Warn("Recorder rejected room message, delivering anyway",
				"room", room, "error", err)
		}
	}

	delivered := 0
	for _, conn := range r.rooms.MembersOf(room) {
		if !r.echoSelf && conn == sender {
			continue
		}
		if err := r.registry.Send(ctx, conn, evt); err != nil {
			r.dropped(conn, evt.EventName(), err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// PublishToUser pushes a direct payload to every live connection of the
// target user and returns the number of successful pushes.
func (r *Relay) PublishToUser(ctx context.Context, target domain.UserID,
	sender domain.UserID, payload []byte) (int, error) {
	evt := event.DirectMessage{
		ID:      uuid.New(),
		Target:  target,
		Sender:  sender,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	if r.recorder != nil {
		if err := r.recorder.RecordDirectMessage(ctx, evt); err != nil {
			r.log.Warn("Recorder rejected direct message, delivering anyway",
				"target", target, "error", err)
		}
	}

	delivered := 0
	for _, conn := range r.registry.ConnectionsOf(target) {
		if err := r.registry.Send(ctx, conn, evt); err != nil {
			r.dropped(conn, evt.EventName(), err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// BroadcastPresence pushes a presence transition to every connection of
// every other user. The subject's own connections already know.
func (r *Relay) BroadcastPresence(ctx context.Context, change domain.StatusChange) int {
	evt := event.PresenceChanged{User: change.User, Status: change.Status, At: change.At}

	delivered := 0
	for _, conn := range r.registry.ConnectionsExcept(change.User) {
		if err := r.registry.Send(ctx, conn, evt); err != nil {
			r.dropped(conn, evt.EventName(), err)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Relay) dropped(conn domain.ConnectionID, eventName string, err error) {
	switch err {
	case errors.ErrDisconnected, errors.ErrOverflow:
		r.log.Debug(fmt.Sprintf("Recipient %s dropped from %s fan-out", conn, eventName),
			"reason", err)
	default:
		r.log.Warn("Push failed", "connection", conn, "event", eventName, "error", err)
	}
}
