// internal/app/features/chat/reactions.go
package chat

import (
	"context"
	"errors"
	"net/http"

	messagestore "github.com/dalemusser/studychat/internal/app/store/messages"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toggleReactionInput is the request body for the reaction toggle.
type toggleReactionInput struct {
	Emoji string `json:"emoji"`
}

// HandleToggleReaction flips the caller's reaction on a message and returns
// the updated message. Toggling the same emoji twice restores the original
// state.
// POST /chat/messages/{messageID}/reactions
func (h *Handler) HandleToggleReaction(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := caller(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	messageID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "messageID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var in toggleReactionInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msg, err := h.Svc.ToggleReaction(ctx, messageID, uid, in.Emoji)
	if err != nil {
		switch {
		case isNotAuthorized(err):
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
		case errors.Is(err, messagestore.ErrMessageNotFound):
			httpjson.Error(w, http.StatusNotFound, "message not found")
		case errors.Is(err, messagestore.ErrBadEmoji):
			httpjson.Error(w, http.StatusBadRequest, "invalid reaction emoji")
		default:
			httpjson.ServerError(w, h.Log, "toggle reaction failed", err)
		}
		return
	}
	httpjson.Respond(w, http.StatusOK, msg)
}
