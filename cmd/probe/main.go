// Probe is a terminal client for poking at a running relay: it connects
// with a locally-minted token, joins a room, prints everything the relay
// pushes, and forwards stdin lines as room messages.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayAddr string `envconfig:"RELAY_ADDR" default:"localhost:8000"`
	// PROBE_TOKEN_SECRET must match the relay's TOKEN_SECRET.
	TokenSecret string `envconfig:"PROBE_TOKEN_SECRET" required:"true"`
	User        string `envconfig:"PROBE_USER" default:"probe"`
	Room        string `envconfig:"PROBE_ROOM" default:"lobby"`
	// PROBE_COLOURS enables colorized output for better readability.
	Colours bool `envconfig:"PROBE_COLOURS" default:"true"`
}

type frame struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"roomId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	SenderUserID string          `json:"senderUserId,omitempty"`
	Status       string          `json:"status,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal(err)
	}

	token, err := auth.GenerateToken(cfg.TokenSecret, domain.UserID(cfg.User), time.Hour)
	if err != nil {
		log.Fatal(err)
	}

	u := url.URL{Scheme: "ws", Host: cfg.RelayAddr, Path: "/ws",
		RawQuery: url.Values{"token": {token}}.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer conn.Close()

	join, _ := json.Marshal(frame{Type: "join-room", RoomID: cfg.Room})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		log.Fatal("join: ", err)
	}
	fmt.Printf("Connected to %s as %s, room %s\n", cfg.RelayAddr, cfg.User, cfg.Room)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			payload, _ := json.Marshal(scanner.Text())
			msg, _ := json.Marshal(frame{Type: "send-room-message", RoomID: cfg.Room, Payload: payload})
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatal("read: ", err)
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			fmt.Println(string(raw))
			continue
		}
		printFrame(cfg.Colours, f)
	}
}

func printFrame(colours bool, f frame) {
	line := render(f)
	if !colours {
		fmt.Println(line)
		return
	}
	switch f.Type {
	case "presence-changed":
		if f.Status == string(domain.StatusOnline) {
			color.Green.Println(line)
		} else {
			color.Gray.Println(line)
		}
	case "room-message":
		color.White.Println(line)
	case "direct-message":
		color.Cyan.Println(line)
	case "join-rejected", "error":
		color.Red.Println(line)
	default:
		fmt.Println(line)
	}
}

func render(f frame) string {
	switch f.Type {
	case "presence-changed":
		return fmt.Sprintf("* %s is %s", f.UserID, f.Status)
	case "room-message":
		return fmt.Sprintf("[%s] %s: %s", f.RoomID, f.SenderUserID, f.Payload)
	case "direct-message":
		return fmt.Sprintf("(dm) %s: %s", f.SenderUserID, f.Payload)
	case "join-rejected":
		return fmt.Sprintf("join rejected for %s: %s", f.RoomID, f.Reason)
	case "error":
		return fmt.Sprintf("error: %s", f.Reason)
	default:
		return fmt.Sprintf("%s: %s", f.Type, f.Payload)
	}
}
