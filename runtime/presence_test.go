package runtime

import (
	"testing"

	"chat-relay/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPresenceTracker_FirstConnectionGoesOnline(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())

	// Given the user is offline
	req.Equal(domain.StatusOffline, presence.StatusOf(user))

	// When the first connection arrives
	change := presence.OnConnect(user)

	// Then exactly one online transition is reported
	req.NotNil(change)
	req.Equal(domain.StatusOnline, change.Status)
	req.Equal(user, change.User)
	req.Equal(domain.StatusOnline, presence.StatusOf(user))
}

func TestPresenceTracker_SecondConnectionIsSuppressed(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())

	// Given the user is already online
	req.NotNil(presence.OnConnect(user))

	// When a second device connects
	change := presence.OnConnect(user)

	// Then no transition is emitted
	req.Nil(change)
	req.Equal(2, presence.ConnectionCount(user))
}

func TestPresenceTracker_IntermediateDisconnectIsSuppressed(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())
	presence.OnConnect(user)
	presence.OnConnect(user)

	// When one of two connections drops
	change := presence.OnDisconnect(user)

	// Then the user stays online silently
	req.Nil(change)
	req.Equal(domain.StatusOnline, presence.StatusOf(user))
}

func TestPresenceTracker_LastDisconnectGoesOffline(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())
	presence.OnConnect(user)
	presence.OnConnect(user)
	presence.OnDisconnect(user)

	// When the last connection drops
	change := presence.OnDisconnect(user)

	// Then exactly one offline transition is reported
	req.NotNil(change)
	req.Equal(domain.StatusOffline, change.Status)
	req.Equal(domain.StatusOffline, presence.StatusOf(user))
}

func TestPresenceTracker_DisconnectWithoutConnectIsNoOp(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())

	// A stray disconnect never drives the count negative
	req.Nil(presence.OnDisconnect(user))
	req.Zero(presence.ConnectionCount(user))
}

func TestPresenceTracker_LastChangedIsRetainedOffline(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()
	user := domain.UserID(uuid.NewString())

	// Given the user was online once
	online := presence.OnConnect(user)
	offline := presence.OnDisconnect(user)
	req.NotNil(online)
	req.NotNil(offline)

	// Then the last-seen marker survives going offline
	seen, ok := presence.LastChanged(user)
	req.True(ok)
	req.Equal(offline.At, seen)
	req.False(seen.Before(online.At))
}

func TestPresenceTracker_OnlineCount(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker()

	presence.OnConnect("a")
	presence.OnConnect("a")
	presence.OnConnect("b")
	presence.OnConnect("c")
	presence.OnDisconnect("c")

	req.Equal(2, presence.OnlineCount())
}
