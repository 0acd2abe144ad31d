package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/go-playground/validator/v10"
)

// inboundEnvelope is the JSON frame clients send.
type inboundEnvelope struct {
	Type         string          `json:"type" validate:"required,oneof=join-room leave-room send-room-message send-direct-message"`
	RoomID       string          `json:"roomId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// outboundEnvelope is the JSON frame the relay pushes. Fields are pruned
// per event type through omitempty.
type outboundEnvelope struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"roomId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	SenderUserID string          `json:"senderUserId,omitempty"`
	Status       string          `json:"status,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	At           time.Time       `json:"at,omitzero"`
}

// decodeCommand turns a raw client frame into a domain command. Malformed
// frames are surfaced only back to the offending client.
func decodeCommand(validate *validator.Validate, raw []byte) (domain.Command, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch env.Type {
	case "join-room":
		if env.RoomID == "" {
			return nil, fmt.Errorf("join-room requires roomId")
		}
		return domain.JoinRoomCommand{Room: domain.RoomID(env.RoomID)}, nil
	case "leave-room":
		if env.RoomID == "" {
			return nil, fmt.Errorf("leave-room requires roomId")
		}
		return domain.LeaveRoomCommand{Room: domain.RoomID(env.RoomID)}, nil
	case "send-room-message":
		if env.RoomID == "" {
			return nil, fmt.Errorf("send-room-message requires roomId")
		}
		return domain.RoomMessageCommand{
			Room:      domain.RoomID(env.RoomID),
			Payload:   env.Payload,
			CreatedAt: time.Now().UTC(),
		}, nil
	case "send-direct-message":
		if env.TargetUserID == "" {
			return nil, fmt.Errorf("send-direct-message requires targetUserId")
		}
		return domain.DirectMessageCommand{
			Target:    domain.UserID(env.TargetUserID),
			Payload:   env.Payload,
			CreatedAt: time.Now().UTC(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

// encodeEvent serializes an outbound event into its wire frame.
func encodeEvent(e event.OutboundEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.PresenceChanged:
		return json.Marshal(outboundEnvelope{
			Type:   evt.EventName(),
			UserID: string(evt.User),
			Status: string(evt.Status),
			At:     evt.At,
		})
	case event.RoomMessage:
		return json.Marshal(outboundEnvelope{
			Type:         evt.EventName(),
			RoomID:       string(evt.Room),
			SenderUserID: string(evt.Sender),
			Payload:      evt.Payload,
			At:           evt.At,
		})
	case event.DirectMessage:
		return json.Marshal(outboundEnvelope{
			Type:         evt.EventName(),
			UserID:       string(evt.Target),
			SenderUserID: string(evt.Sender),
			Payload:      evt.Payload,
			At:           evt.At,
		})
	case event.JoinRejected:
		return json.Marshal(outboundEnvelope{
			Type:   evt.EventName(),
			RoomID: string(evt.Room),
			Reason: evt.Reason,
		})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.EventName())
	}
}

func encodeError(reason string) []byte {
	b, _ := json.Marshal(outboundEnvelope{Type: "error", Reason: reason})
	return b
}
