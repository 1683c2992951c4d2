// internal/app/features/chat/typing.go
package chat

import (
	"context"
	"errors"
	"net/http"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleTyping records a typing signal for the caller. The indicator
// self-expires after the TTL; clients just re-signal while the user types.
// POST /chat/{groupID}/typing
func (h *Handler) HandleTyping(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Svc.Typing(ctx, groupID, uid); err != nil {
		switch {
		case isNotAuthorized(err):
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
		case errors.Is(err, chatcore.ErrRateLimited):
			httpjson.Error(w, http.StatusTooManyRequests, "slow down")
		default:
			httpjson.ServerError(w, h.Log, "typing signal failed", err)
		}
		return
	}
	httpjson.Respond(w, http.StatusNoContent, nil)
}

// HandleTypingUsers returns the point-in-time typing snapshot for a group.
// GET /chat/{groupID}/typing
func (h *Handler) HandleTypingUsers(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	// Membership gate only; the snapshot itself is in-memory.
	if _, err := h.Svc.Members(ctx, groupID, uid); err != nil {
		if isNotAuthorized(err) {
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
			return
		}
		httpjson.ServerError(w, h.Log, "typing snapshot failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, map[string][]string{
		"typing_users": h.Svc.TypingUsers(groupID),
	})
}
