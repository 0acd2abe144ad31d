package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type lifecycleFixture struct {
	registry  *Registry
	rooms     *RoomTable
	presence  *PresenceTracker
	relay     *Relay
	lifecycle *Lifecycle
}

func newLifecycleFixture(t *testing.T, authorizer contract.Authorizer, recorder contract.Recorder) lifecycleFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	rooms := NewRoomTable()
	presence := NewPresenceTracker()
	relay := NewRelay(log, registry, rooms, nil, nil, false)
	lifecycle := NewLifecycle(log, registry, rooms, presence, relay, authorizer, recorder)
	return lifecycleFixture{
		registry:  registry,
		rooms:     rooms,
		presence:  presence,
		relay:     relay,
		lifecycle: lifecycle,
	}
}

func TestLifecycle_Accept_RegistersAndGoesActive(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)

	sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})

	req.NoError(err)
	req.Equal(StateActive, sess.State())
	req.Equal(domain.UserID("alice"), sess.User())
	req.Equal(1, f.registry.CountConnections())
	req.Equal(domain.StatusOnline, f.presence.StatusOf("alice"))
}

func TestLifecycle_Accept_BroadcastsOnlineToPeers(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	bobSink := &captureSink{}
	_, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)

	// When alice comes online
	aliceSink := &captureSink{}
	_, err = f.lifecycle.Accept(context.Background(), "alice", aliceSink)
	req.NoError(err)

	// Then bob hears about it, alice does not hear about herself
	req.Len(bobSink.Events(), 1)
	change, ok := bobSink.Events()[0].(event.PresenceChanged)
	req.True(ok)
	req.Equal(domain.UserID("alice"), change.User)
	req.Equal(domain.StatusOnline, change.Status)
	req.Empty(aliceSink.Events())
}

func TestLifecycle_Accept_SecondDeviceIsSilent(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	bobSink := &captureSink{}
	_, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)
	_, err = f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	// When alice opens a second connection
	_, err = f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	// Then no additional presence event reaches bob
	req.Len(bobSink.Events(), 1)
	req.Equal(2, f.presence.ConnectionCount("alice"))
}

func TestLifecycle_Accept_EmptyPrincipalIsRejected(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)

	sess, err := f.lifecycle.Accept(context.Background(), "", &captureSink{})

	req.ErrorIs(err, errors.ErrUnauthorized)
	req.Nil(sess)
	req.Zero(f.registry.CountConnections())
}

func TestLifecycle_Handle_JoinAndLeave(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	// When joining a room
	req.NoError(f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "r"}))
	req.Equal([]domain.ConnectionID{sess.ID()}, f.rooms.MembersOf("r"))

	// When leaving it again
	req.NoError(f.lifecycle.Handle(context.Background(), sess, domain.LeaveRoomCommand{Room: "r"}))
	req.Empty(f.rooms.MembersOf("r"))
}

func TestLifecycle_Handle_JoinRejectedByAuthorizer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	authorizer := mocks.NewMockAuthorizer(ctrl)
	f := newLifecycleFixture(t, authorizer, nil)
	sink := &captureSink{}
	sess, err := f.lifecycle.Accept(context.Background(), "alice", sink)
	req.NoError(err)

	// Given the external collaborator denies membership
	authorizer.EXPECT().CanJoin(gomock.Any(), domain.UserID("alice"), domain.RoomID("vip")).
		Return(false).Times(1)

	// When alice tries to join
	err = f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "vip"})

	// Then the join fails, the rejection reaches only alice, and the
	// connection stays usable
	req.ErrorIs(err, errors.ErrUnauthorized)
	req.Empty(f.rooms.MembersOf("vip"))
	req.Len(sink.Events(), 1)
	rejection, ok := sink.Events()[0].(event.JoinRejected)
	req.True(ok)
	req.Equal(domain.RoomID("vip"), rejection.Room)
	req.Equal(StateActive, sess.State())
}

func TestLifecycle_Handle_RoomMessageReachesMembers(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	aliceSess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)
	bobSink := &captureSink{}
	bobSess, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)

	req.NoError(f.lifecycle.Handle(context.Background(), aliceSess, domain.JoinRoomCommand{Room: "r"}))
	req.NoError(f.lifecycle.Handle(context.Background(), bobSess, domain.JoinRoomCommand{Room: "r"}))

	// When alice sends into the room
	err = f.lifecycle.Handle(context.Background(), aliceSess,
		domain.RoomMessageCommand{Room: "r", Payload: []byte(`"hi"`)})
	req.NoError(err)

	// Then bob receives it (after the presence event from alice's accept)
	events := bobSink.Events()
	last := events[len(events)-1]
	msg, ok := last.(event.RoomMessage)
	req.True(ok)
	req.Equal(domain.UserID("alice"), msg.Sender)
}

func TestLifecycle_Handle_AfterCloseIsRejected(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	f.lifecycle.Close(context.Background(), sess)

	err = f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "r"})
	req.ErrorIs(err, errors.ErrDisconnected)
}

func TestLifecycle_Close_TearsDownEverything(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	recorder := mocks.NewMockRecorder(ctrl)
	f := newLifecycleFixture(t, nil, recorder)

	bobSink := &captureSink{}
	_, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)

	sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)
	req.NoError(f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "a"}))
	req.NoError(f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "b"}))

	// Then the offline transition persists a last-seen marker
	recorder.EXPECT().RecordLastSeen(gomock.Any(), domain.UserID("alice"), gomock.Any()).
		Return(nil).Times(1)

	// When the connection closes
	f.lifecycle.Close(context.Background(), sess)

	// Then the session is terminal and every table forgot it
	req.Equal(StateClosed, sess.State())
	req.Empty(f.rooms.RoomsOf(sess.ID()))
	req.Empty(f.rooms.MembersOf("a"))
	req.Empty(f.rooms.MembersOf("b"))
	req.Equal(domain.StatusOffline, f.presence.StatusOf("alice"))
	_, err = f.registry.UserOf(sess.ID())
	req.ErrorIs(err, errors.ErrNotFound)

	// And bob saw exactly one online and one offline event for alice
	var statuses []domain.Status
	for _, e := range bobSink.Events() {
		if change, ok := e.(event.PresenceChanged); ok {
			statuses = append(statuses, change.Status)
		}
	}
	req.Equal([]domain.Status{domain.StatusOnline, domain.StatusOffline}, statuses)
}

func TestLifecycle_Close_IsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	bobSink := &captureSink{}
	_, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)
	sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	// When close fires twice
	f.lifecycle.Close(context.Background(), sess)
	f.lifecycle.Close(context.Background(), sess)

	// Then the second signal is a no-op: one online, one offline, nothing more
	var presenceEvents int
	for _, e := range bobSink.Events() {
		if _, ok := e.(event.PresenceChanged); ok {
			presenceEvents++
		}
	}
	req.Equal(2, presenceEvents)
	req.Zero(f.presence.ConnectionCount("alice"))
}

func TestLifecycle_Close_OneOfTwoDevicesStaysOnline(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)
	bobSink := &captureSink{}
	_, err := f.lifecycle.Accept(context.Background(), "bob", bobSink)
	req.NoError(err)

	sess1, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)
	_, err = f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	// When one of alice's two connections closes
	f.lifecycle.Close(context.Background(), sess1)

	// Then alice stays online and bob hears nothing new
	req.Equal(domain.StatusOnline, f.presence.StatusOf("alice"))
	req.Len(bobSink.Events(), 1)
}

// A join racing a close must resolve to "present then removed" or
// "never added"; a membership entry for an unregistered connection may
// never survive.
func TestLifecycle_JoinRacingCloseLeavesNoMembership(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)

	for i := 0; i < 200; i++ {
		sess, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
		req.NoError(err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.lifecycle.Handle(context.Background(), sess, domain.JoinRoomCommand{Room: "contested"})
		}()
		go func() {
			defer wg.Done()
			f.lifecycle.Close(context.Background(), sess)
		}()
		wg.Wait()

		// Whatever the interleaving, once both return the session is gone
		// from the room table and the registry agrees
		req.Empty(f.rooms.RoomsOf(sess.ID()))
		_, err = f.registry.UserOf(sess.ID())
		req.ErrorIs(err, errors.ErrNotFound)
	}
	req.Empty(f.rooms.MembersOf("contested"))
}

// Presence count equals registry cardinality at every quiescent point.
func TestLifecycle_PresenceCountMatchesRegistry(t *testing.T) {
	req := require.New(t)
	f := newLifecycleFixture(t, nil, nil)

	sess1, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)
	sess2, err := f.lifecycle.Accept(context.Background(), "alice", &captureSink{})
	req.NoError(err)

	req.Equal(len(f.registry.ConnectionsOf("alice")), f.presence.ConnectionCount("alice"))

	f.lifecycle.Close(context.Background(), sess1)
	req.Equal(len(f.registry.ConnectionsOf("alice")), f.presence.ConnectionCount("alice"))

	f.lifecycle.Close(context.Background(), sess2)
	req.Zero(len(f.registry.ConnectionsOf("alice")))
	req.Zero(f.presence.ConnectionCount("alice"))
}
