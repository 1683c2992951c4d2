// internal/app/features/chat/messages.go
package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	messagestore "github.com/dalemusser/studychat/internal/app/store/messages"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sendMessageInput is the request body for POST /chat/{groupID}/messages.
type sendMessageInput struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
}

// HandleHistory returns the group's messages in append order. `since`
// (a sequence number) makes the read incremental; it is also the recovery
// path after dropped realtime events.
// GET /chat/{groupID}/messages?since=N
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := caller(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			httpjson.Error(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	messages, err := h.Svc.History(ctx, groupID, uid, since)
	if err != nil {
		if isNotAuthorized(err) {
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
			return
		}
		httpjson.ServerError(w, h.Log, "history failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, messages)
}

// HandleSend persists a message and fans it out. The response is written
// only after the durable write, so a 201 means "sent".
// POST /chat/{groupID}/messages
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
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

	var in sendMessageInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	msg, err := h.Svc.Send(ctx, groupID, uid, name, in.Content, in.Attachments)
	if err != nil {
		switch {
		case isNotAuthorized(err):
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
		case errors.Is(err, messagestore.ErrEmptyMessage):
			httpjson.Error(w, http.StatusBadRequest, "message needs content or attachments")
		default:
			httpjson.ServerError(w, h.Log, "send failed", err)
		}
		return
	}
	httpjson.Respond(w, http.StatusCreated, msg)
}
