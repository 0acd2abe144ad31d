package domain

import "time"

// Command is an inbound intent decoded from a connected client.
type Command interface {
	CommandName() string
}

type JoinRoomCommand struct {
	Room RoomID
}

func (JoinRoomCommand) CommandName() string { return "join-room" }

type LeaveRoomCommand struct {
	Room RoomID
}

func (LeaveRoomCommand) CommandName() string { return "leave-room" }

type RoomMessageCommand struct {
	Room      RoomID
	Payload   []byte
	CreatedAt time.Time
}

func (RoomMessageCommand) CommandName() string { return "send-room-message" }

type DirectMessageCommand struct {
	Target    UserID
	Payload   []byte
	CreatedAt time.Time
}

func (DirectMessageCommand) CommandName() string { return "send-direct-message" }
