//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// EventSink is the outbound side of one live connection. Consume must not
// block: a full buffer returns ErrOverflow, a dead transport ErrDisconnected.
type EventSink interface {
	Consume(ctx context.Context, e event.OutboundEvent) error
}

// Authorizer is the external collaborator consulted before a join request
// is honored. The relay core never decides membership rights itself.
type Authorizer interface {
	CanJoin(ctx context.Context, user domain.UserID, room domain.RoomID) bool
}

// AuthorizerFunc adapts a plain function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, user domain.UserID, room domain.RoomID) bool

func (f AuthorizerFunc) CanJoin(ctx context.Context, user domain.UserID, room domain.RoomID) bool {
	return f(ctx, user, room)
}

// Recorder is the optional durability collaborator, notified synchronously
// before fan-out. A Recorder failure never aborts delivery.
type Recorder interface {
	RecordRoomMessage(ctx context.Context, e event.RoomMessage) error
	RecordDirectMessage(ctx context.Context, e event.DirectMessage) error
	RecordLastSeen(ctx context.Context, user domain.UserID, at time.Time) error
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
