// Package gateway terminates websocket connections: it authenticates the
// handshake, registers the connection with the router and dispatches inbound
// events one at a time.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/dupahar-dm/pkg/auth"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/router"
)

const (
	errInvalidPayload = "Invalid message data"
	errSendFailed     = "Failed to send message"
	errReadFailed     = "Failed to mark messages as read"
	errUnknownEvent   = "Unknown event"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

type Sender interface {
	Send(ctx context.Context, sender string, request model.SendRequest) (model.Message, error)
}

type ReadMarker interface {
	MarkRead(ctx context.Context, reader, counterpart string) (int, error)
}

type Typing interface {
	Start(ctx context.Context, sender, receiver string) error
	Stop(ctx context.Context, sender, receiver string) error
}

type Options struct {
	SendBufferSize int
	MaxFrameSize   int64
}

type Handler struct {
	log      *slog.Logger
	auth     Authenticator
	router   *router.Router
	sender   Sender
	reads    ReadMarker
	typing   Typing
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, authenticator Authenticator, r *router.Router,
	sender Sender, reads ReadMarker, typing Typing, opts Options) *Handler {
	return &Handler{
		log:    log,
		auth:   authenticator,
		router: r,
		sender: sender,
		reads:  reads,
		typing: typing,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP authenticates before upgrading, so a refused handshake never
// reaches the router. It returns once the connection is gone.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	identity, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		if !errors.IsAuth(err) {
			h.log.Error("Failed to authenticate websocket handshake", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.log.Info("Unauthorized websocket handshake", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "user", identity, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	client := newClient(conn, identity, h.opts.SendBufferSize)
	h.router.Register(ctx, client)
	go client.writePump()
	h.readPump(ctx, client)
}

// readPump handles the client's events strictly in arrival order.
func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.router.Deregister(context.WithoutCancel(ctx), c)
		c.Close()
	}()
	if h.opts.MaxFrameSize > 0 {
		c.conn.SetReadLimit(h.opts.MaxFrameSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("Websocket read failed", "user", c.identity, "conn", c.id, "error", err)
			}
			return
		}
		h.dispatch(ctx, c, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Client, frame []byte) {
	var env model.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.reject(c, errInvalidPayload)
		return
	}

	switch env.Event {
	case model.EventMessageSend:
		var request model.SendRequest
		if err := json.Unmarshal(env.Data, &request); err != nil {
			h.reject(c, errInvalidPayload)
			return
		}
		if _, err := h.sender.Send(ctx, c.identity, request); err != nil {
			h.fail(c, err, errSendFailed)
		}

	case model.EventMessageRead:
		var request model.ReadRequest
		if err := json.Unmarshal(env.Data, &request); err != nil {
			h.reject(c, errInvalidPayload)
			return
		}
		if _, err := h.reads.MarkRead(ctx, c.identity, request.SenderID); err != nil {
			h.fail(c, err, errReadFailed)
		}

	case model.EventTypingStart, model.EventTypingStop:
		var request model.TypingRequest
		if err := json.Unmarshal(env.Data, &request); err != nil {
			h.reject(c, errInvalidPayload)
			return
		}
		relay := h.typing.Start
		if env.Event == model.EventTypingStop {
			relay = h.typing.Stop
		}
		if err := relay(ctx, c.identity, request.ReceiverID); err != nil {
			h.fail(c, err, errInvalidPayload)
		}

	default:
		h.log.Debug("Unknown event", "user", c.identity, "event", env.Event)
		h.reject(c, errUnknownEvent)
	}
}

// fail reports err to the originating connection only. Validation reasons
// are passed through, anything else becomes generic.
func (h *Handler) fail(c *Client, err error, generic string) {
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		h.reject(c, verr.Error())
		return
	}
	h.reject(c, generic)
}

func (h *Handler) reject(c *Client, reason string) {
	if err := h.router.SendToConnection(c, model.EventMessageError, model.ErrorPayload{Error: reason}); err != nil {
		h.log.Debug("Failed to send error", "user", c.identity, "conn", c.id, "error", err)
	}
}
