// Package event defines the outbound events the relay pushes to connected
// clients. Events are immutable once built.
package event

import (
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
)

// OutboundEvent is anything the relay can push to a connection sink.
type OutboundEvent interface {
	EventName() string
}

type PresenceChanged struct {
	User   domain.UserID
	Status domain.Status
	At     time.Time
}

func (PresenceChanged) EventName() string { return "presence-changed" }

type RoomMessage struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Sender  domain.UserID
	Payload []byte
	At      time.Time
}

func (RoomMessage) EventName() string { return "room-message" }

type DirectMessage struct {
	ID      uuid.UUID
	Target  domain.UserID
	Sender  domain.UserID
	Payload []byte
	At      time.Time
}

func (DirectMessage) EventName() string { return "direct-message" }

// JoinRejected is surfaced only to the client whose join request failed
// the authorization check. The connection stays open.
type JoinRejected struct {
	Room   domain.RoomID
	Reason string
}

func (JoinRejected) EventName() string { return "join-rejected" }
