package ws

import (
	"encoding/json"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newValidate() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func TestDecodeCommand_JoinRoom(t *testing.T) {
	req := require.New(t)

	cmd, err := decodeCommand(newValidate(), []byte(`{"type":"join-room","roomId":"general"}`))

	req.NoError(err)
	join, ok := cmd.(domain.JoinRoomCommand)
	req.True(ok)
	req.Equal(domain.RoomID("general"), join.Room)
}

func TestDecodeCommand_RoomMessageCarriesRawPayload(t *testing.T) {
	req := require.New(t)

	cmd, err := decodeCommand(newValidate(),
		[]byte(`{"type":"send-room-message","roomId":"general","payload":{"text":"hi"}}`))

	req.NoError(err)
	msg, ok := cmd.(domain.RoomMessageCommand)
	req.True(ok)
	req.Equal(domain.RoomID("general"), msg.Room)
	req.JSONEq(`{"text":"hi"}`, string(msg.Payload))
	req.False(msg.CreatedAt.IsZero())
}

func TestDecodeCommand_DirectMessage(t *testing.T) {
	req := require.New(t)

	cmd, err := decodeCommand(newValidate(),
		[]byte(`{"type":"send-direct-message","targetUserId":"bob","payload":"psst"}`))

	req.NoError(err)
	dm, ok := cmd.(domain.DirectMessageCommand)
	req.True(ok)
	req.Equal(domain.UserID("bob"), dm.Target)
}

func TestDecodeCommand_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{{{`},
		{name: "unknown type", raw: `{"type":"shout"}`},
		{name: "missing type", raw: `{"roomId":"general"}`},
		{name: "join without room", raw: `{"type":"join-room"}`},
		{name: "leave without room", raw: `{"type":"leave-room"}`},
		{name: "room message without room", raw: `{"type":"send-room-message","payload":"hi"}`},
		{name: "direct message without target", raw: `{"type":"send-direct-message","payload":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := decodeCommand(newValidate(), []byte(tt.raw))
			require.Error(t, err)
			require.Nil(t, cmd)
		})
	}
}

func TestEncodeEvent_RoomMessage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	frame, err := encodeEvent(event.RoomMessage{
		ID:      uuid.New(),
		Room:    "general",
		Sender:  "alice",
		Payload: []byte(`{"text":"hi"}`),
		At:      at,
	})
	req.NoError(err)

	var env outboundEnvelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal("room-message", env.Type)
	req.Equal("general", env.RoomID)
	req.Equal("alice", env.SenderUserID)
	req.JSONEq(`{"text":"hi"}`, string(env.Payload))
	req.True(env.At.Equal(at))
	req.Empty(env.Status)
	req.Empty(env.Reason)
}

func TestEncodeEvent_PresenceChanged(t *testing.T) {
	req := require.New(t)

	frame, err := encodeEvent(event.PresenceChanged{
		User:   "alice",
		Status: domain.StatusOffline,
		At:     time.Now().UTC(),
	})
	req.NoError(err)

	var env outboundEnvelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal("presence-changed", env.Type)
	req.Equal("alice", env.UserID)
	req.Equal("offline", env.Status)
	req.Empty(env.RoomID)
}

func TestEncodeEvent_JoinRejectedOmitsTimestamp(t *testing.T) {
	req := require.New(t)

	frame, err := encodeEvent(event.JoinRejected{Room: "vip", Reason: "not a member of this room"})
	req.NoError(err)

	req.JSONEq(`{"type":"join-rejected","roomId":"vip","reason":"not a member of this room"}`,
		string(frame))
}

func TestEncodeError(t *testing.T) {
	require.JSONEq(t, `{"type":"error","reason":"invalid frame"}`,
		string(encodeError("invalid frame")))
}
