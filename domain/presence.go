package domain

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// StatusChange is emitted only when a user crosses the zero-connection
// boundary in either direction. Intermediate multi-device transitions are
// suppressed to avoid broadcast storms.
type StatusChange struct {
	User   UserID
	Status Status
	At     time.Time
}
