// Package ws binds the relay runtime to WebSocket transport: upgrade,
// principal attachment, the per-connection read/write pumps, and the JSON
// wire envelope.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/runtime"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

type HandlerConfig struct {
	AllowedOrigins []string
	BufferSize     int
	ReadLimit      int64
}

// Handler upgrades HTTP requests to relay connections. The bearer token on
// the request identifies the principal; it was issued and authenticated by
// the CRUD API upstream, the handler only attaches the identity it names.
type Handler struct {
	log       *slog.Logger
	lifecycle *runtime.Lifecycle
	tokens    *auth.TokenParser
	upgrader  websocket.Upgrader
	validate  *validator.Validate
	cfg       HandlerConfig
}

func NewHandler(log *slog.Logger, lifecycle *runtime.Lifecycle,
	tokens *auth.TokenParser, cfg HandlerConfig) *Handler {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	return &Handler{
		log:       log,
		lifecycle: lifecycle,
		tokens:    tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.tokens.Principal(r.URL.Query().Get("token"))
	if err != nil {
		h.log.Debug("Rejected connection with invalid token", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	c := newClient(h.log, conn, h.cfg.BufferSize)

	sess, err := h.lifecycle.Accept(r.Context(), user, c)
	if err != nil {
		h.log.Warn("Connection rejected", "user", user, "error", err)
		c.close()
		return
	}

	go c.writePump()
	h.readPump(r.Context(), c, sess)

	// Teardown uses a fresh context: the request context is already gone.
	h.lifecycle.Close(context.Background(), sess)
	c.close()
}

// readPump consumes client frames until the connection dies, dispatching
// each decoded command to the lifecycle controller. Runs on the handler
// goroutine.
func (h *Handler) readPump(ctx context.Context, c *client, sess *runtime.Session) {
	c.setupRead(h.cfg.ReadLimit)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.log.Debug("Unexpected close", "connection", sess.ID(), "error", err)
			}
			return
		}

		cmd, err := decodeCommand(h.validate, raw)
		if err != nil {
			// Malformed requests are surfaced only to the offending client.
			c.enqueue(encodeError(err.Error()))
			continue
		}

		if err := h.lifecycle.Handle(ctx, sess, cmd); err != nil {
			switch err {
			case errors.ErrUnauthorized:
				// The rejection event already went back to this client.
				h.log.Debug(fmt.Sprintf("Join rejected for %s", sess.User()))
			case errors.ErrDisconnected:
				return
			default:
				h.log.Warn("Command failed", "connection", sess.ID(),
					"command", cmd.CommandName(), "error", err)
				c.enqueue(encodeError(err.Error()))
			}
		}
	}
}
