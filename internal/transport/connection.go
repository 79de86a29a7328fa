// Package transport is the WebSocket connection handler: one reader/
// writer goroutine pair per connection, bridging a socket to a room
// actor's Ref. Grounded on the teacher's internal/v1/transport/{hub,client}.go
// (the gorilla/websocket upgrade, CheckOrigin, and read/write pump
// shape), adapted onto roomactor.Ref sends instead of the teacher's
// direct Room method calls.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/mailbox"
	"github.com/boardsync/server/internal/metrics"
	"github.com/boardsync/server/internal/protocol"
	"github.com/boardsync/server/internal/ratelimit"
	"github.com/boardsync/server/internal/roomactor"
)

const writeWait = 10 * time.Second

// RoomResolver is the subset of *registry.Registry the connection handler
// needs — a Get-only seam so tests can stub room resolution without a
// real storage-backed Registry.
type RoomResolver interface {
	Get(ctx context.Context, publicID string) (roomactor.Ref, error)
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// wires each one to a room actor.
type Handler struct {
	rooms          RoomResolver
	codec          protocol.Codec
	allowedOrigins []string
	flood          *ratelimit.FloodGuard
}

func NewHandler(rooms RoomResolver, allowedOrigins []string) *Handler {
	return &Handler{rooms: rooms, codec: protocol.JSONCodec{}, allowedOrigins: allowedOrigins}
}

// WithFloodGuard wires the shared flood-guard actor into the connection
// handler, so every inbound WebSocket frame counts against its per-IP
// message quota; HTTP requests and the upgrade request itself count
// against the same guard's request quota.
func (h *Handler) WithFloodGuard(fg *ratelimit.FloodGuard) *Handler {
	h.flood = fg
	return h
}

// validateOrigin allows requests with no Origin header (non-browser
// clients) and otherwise requires an exact scheme+host match against the
// configured allow-list.
func validateOrigin(r *http.Request, allowed []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	for _, a := range allowed {
		allowedURL, err := url.Parse(a)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}
	return fmt.Errorf("origin %q not allowed", origin)
}

// ServeWS upgrades the request and hands the connection off to its
// own reader/writer goroutine pair. The room's public id is taken from
// the :public_id route param.
func (h *Handler) ServeWS(c *gin.Context) {
	publicID := c.Param("public_id")
	ip := ratelimit.RemoteIP(c.Request.RemoteAddr)

	if h.flood != nil {
		if err := h.flood.CheckAndRecordRequest(ip); err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.RateLimit), gin.H{"error": err.Error()})
			return
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	ref, err := h.rooms.Get(ctx, publicID)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "no such room"))
		conn.Close()
		return
	}

	userID := uuid.NewString()
	outbox := mailbox.NewUnbounded[protocol.ServerMessage]()
	ref.Join(ctx, userID, outbox)

	metrics.IncConnection()

	cxn := &connection{
		conn:   conn,
		ref:    ref,
		userID: userID,
		outbox: outbox,
		codec:  h.codec,
		ip:     ip,
		flood:  h.flood,
	}
	go cxn.writePump()
	go cxn.readPump()
}

// connection binds one socket to one room's Ref.
type connection struct {
	conn   *websocket.Conn
	ref    roomactor.Ref
	userID string
	outbox *mailbox.Unbounded[protocol.ServerMessage]
	codec  protocol.Codec
	ip     string
	flood  *ratelimit.FloodGuard

	authed bool
}

// readPump decodes one client frame at a time and applies it against the
// room actor. Only Pull and Auth are accepted before authentication
// succeeds — every other kind gets an Info error reply without ever
// reaching the actor, mirroring the original's own connection-local
// is_authed gate.
func (c *connection) readPump() {
	ctx := context.Background()
	defer func() {
		c.ref.Leave(c.userID)
		c.outbox.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.flood != nil {
			if err := c.flood.CheckAndRecordMessage(c.ip); err != nil {
				c.outbox.Send(protocol.Info("error", "rate_limit", err.Error()))
				return
			}
		}
		msg, err := c.codec.DecodeClientMessage(data)
		if err != nil {
			c.outbox.Send(protocol.Info("error", "decode", err.Error()))
			continue
		}
		if !c.authed && msg.Kind != protocol.MsgPull && msg.Kind != protocol.MsgAuth {
			c.outbox.Send(protocol.Info("error", string(msg.Kind), apperr.ErrUnauthedMutation.Error()))
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *connection) dispatch(ctx context.Context, msg protocol.ClientMessage) {
	switch msg.Kind {
	case protocol.MsgPull:
		reply, err := c.ref.Pull(ctx, c.userID, msg.CurrentIDs, msg.UndoneIDs)
		if err != nil {
			logging.Warn(logging.WithUserID(ctx, c.userID), "pull failed")
			return
		}
		c.outbox.Send(reply)

	case protocol.MsgAuth:
		res, err := c.ref.Auth(ctx, c.userID, msg.Token)
		if err != nil {
			return
		}
		c.authed = res.OK
		if res.OK {
			c.outbox.Send(protocol.ServerMessage{Kind: protocol.MsgAuthed})
		} else {
			c.outbox.Send(protocol.Info("error", "auth", apperr.ErrBadPrivateID.Error()))
		}

	case protocol.MsgPush:
		for _, edit := range msg.Edits {
			if err := c.ref.Push(ctx, c.userID, edit, msg.Silent); err != nil {
				c.outbox.Send(protocol.Info("error", "push", err.Error()))
				return
			}
		}

	case protocol.MsgUndoRedo:
		if err := c.ref.UndoRedo(ctx, c.userID, msg.ActionType, msg.ActionID); err != nil {
			c.outbox.Send(protocol.Info("error", "undo_redo", err.Error()))
		}

	case protocol.MsgEmpty:
		if err := c.ref.Empty(ctx, c.userID, msg.Which); err != nil {
			c.outbox.Send(protocol.Info("error", "empty", err.Error()))
		}

	case protocol.MsgSetSize:
		if msg.Size == nil {
			c.outbox.Send(protocol.Info("error", "set_size", "size is missing"))
			return
		}
		if err := c.ref.SetSize(ctx, c.userID, *msg.Size); err != nil {
			c.outbox.Send(protocol.Info("error", "set_size", err.Error()))
		}

	case protocol.MsgSetTitle:
		if err := c.ref.SetTitle(ctx, c.userID, msg.Title); err != nil {
			c.outbox.Send(protocol.Info("error", "set_title", err.Error()))
		}

	default:
		c.outbox.Send(protocol.Info("error", "unknown", "unrecognized message kind"))
	}
}

// writePump drains the connection's outbox onto the socket until the
// outbox is closed (by readPump's teardown) or a write fails.
func (c *connection) writePump() {
	defer c.conn.Close()
	for msg := range c.outbox.Out {
		data, err := c.codec.EncodeServerMessage(msg)
		if err != nil {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
