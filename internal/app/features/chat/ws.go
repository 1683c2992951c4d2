// internal/app/features/chat/ws.go
package chat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	// writeWait is the max time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingInterval must be shorter than pongWait.
	pingInterval = (pongWait * 9) / 10

	// errorQueueSize bounds pending error frames awaiting the write pump.
	errorQueueSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkSameOrigin,
}

// checkSameOrigin rejects browser upgrade attempts from other origins.
// Browsers attach the session cookie to ws handshakes, so the Origin header
// is what keeps a hostile page from opening an authenticated socket.
// Requests without an Origin header (non-browser clients) pass.
func checkSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// wsInbound is the client-to-server frame. Type selects which fields matter.
type wsInbound struct {
	Type        string              `json:"type"` // send_message | toggle_reaction | typing
	Content     string              `json:"content,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	MessageID   string              `json:"message_id,omitempty"`
	Emoji       string              `json:"emoji,omitempty"`
}

// wsError is the server-to-client error frame.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeWS upgrades the connection and streams the group's live events to the
// peer. Inbound frames are dispatched to the same service operations the
// HTTP endpoints use, so both transports share one behavior.
// GET /chat/{groupID}/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	uid, name, ok := caller(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	openCtx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	session, err := h.Svc.OpenSession(openCtx, groupID, uid, name)
	cancel()
	if err != nil {
		if isNotAuthorized(err) {
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
			return
		}
		httpjson.ServerError(w, h.Log, "open session failed", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		session.Close()
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	// All outbound frames go through the write pump; errs carries error
	// frames from the read side so only one goroutine ever writes.
	errs := make(chan string, errorQueueSize)

	go h.writePump(conn, session, errs)
	go h.readPump(conn, session, errs)
}

// readPump pulls frames off the socket and dispatches them. It owns the
// read side and the session teardown; closing the session ends the write
// pump via the events channel.
func (h *Handler) readPump(conn *websocket.Conn, session *chatcore.Session, errs chan<- string) {
	defer func() {
		session.Close()
		conn.Close()
	}()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame wsInbound
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("websocket read error",
					zap.String("group_id", session.GroupID.Hex()),
					zap.Error(err))
			}
			return
		}
		h.dispatch(session, errs, frame)
	}
}

// dispatch routes one inbound frame. Errors are queued back to the peer
// through the write pump rather than terminating the connection; a bad frame
// should not kick the client out of the room.
func (h *Handler) dispatch(session *chatcore.Session, errs chan<- string, frame wsInbound) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	var err error
	switch frame.Type {
	case "send_message":
		_, err = h.Svc.Send(ctx, session.GroupID, session.UserID, session.UserName, frame.Content, frame.Attachments)
	case "toggle_reaction":
		var messageID primitive.ObjectID
		messageID, err = primitive.ObjectIDFromHex(frame.MessageID)
		if err == nil {
			_, err = h.Svc.ToggleReaction(ctx, messageID, session.UserID, frame.Emoji)
		}
	case "typing":
		err = h.Svc.Typing(ctx, session.GroupID, session.UserID)
		if errors.Is(err, chatcore.ErrRateLimited) {
			// Typing spam is expected during bursts; drop silently.
			err = nil
		}
	default:
		reportError(errs, "unknown frame type")
		return
	}
	if err != nil {
		reportError(errs, err.Error())
	}
}

// reportError queues an error frame for the write pump, dropping it when
// the queue is full.
func reportError(errs chan<- string, msg string) {
	select {
	case errs <- msg:
	default:
	}
}

// writePump drains the session's event channel and queued error frames onto
// the socket and keeps the connection alive with pings. It is the only
// goroutine that writes to the connection. It exits when the event channel
// closes or a write fails.
func (h *Handler) writePump(conn *websocket.Conn, session *chatcore.Session, errs <-chan string) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case msg := <-errs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsError{Type: "error", Error: msg}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
