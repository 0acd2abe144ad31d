// Package domain contains core concepts of the relay system.
// Identifiers are opaque: the CRUD store upstream owns their meaning.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

// UserID identifies an authenticated principal. Never reused across
// different principals.
type UserID string

// ConnectionID identifies one live transport session. Unique for the
// lifetime of the process and never reassigned.
type ConnectionID string

// RoomID identifies a conversation or channel. A room exists independently
// of membership.
type RoomID string

// NewConnectionID allocates a fresh process-unique connection identifier.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}
