package errors

import "fmt"

var (
	// ErrNotFound is returned when an operation references an unknown
	// connection or room. Callers log it and treat the operation as a no-op.
	ErrNotFound = fmt.Errorf("not found")

	// ErrUnauthorized is returned when a join request is rejected by the
	// external authorization check. The requesting connection stays open.
	ErrUnauthorized = fmt.Errorf("unauthorized")

	// ErrDisconnected is returned when a push to a specific recipient fails
	// because its transport is gone. Never propagated past the fan-out.
	ErrDisconnected = fmt.Errorf("recipient disconnected")

	// ErrOverflow is returned when a recipient's outbound buffer is full.
	// The recipient is disconnected to shed backpressure.
	ErrOverflow = fmt.Errorf("outbound buffer overflow")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
