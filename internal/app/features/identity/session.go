// internal/app/features/identity/session.go
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/studychat/internal/app/system/auth"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// signInInput is the request body for POST /session. UserID is optional;
// omitting it creates a fresh identity. Supplying a previous id re-attaches
// to that identity (and updates the display name if it changed).
type signInInput struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// HandleSignIn upserts the user record and establishes the session cookie.
// POST /session
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var in signInInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		httpjson.Error(w, http.StatusBadRequest, "display_name is required")
		return
	}

	id := primitive.NewObjectID()
	if in.UserID != "" {
		parsed, err := primitive.ObjectIDFromHex(in.UserID)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		id = parsed
	}

	var email *string
	if e := strings.TrimSpace(in.Email); e != "" {
		email = &e
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.Upsert(ctx, id, in.DisplayName, email)
	if err != nil {
		httpjson.ServerError(w, h.Log, "sign in failed", err)
		return
	}

	if err := auth.SignIn(w, r, auth.SessionUser{
		ID:   user.ID.Hex(),
		Name: user.DisplayName,
	}); err != nil {
		httpjson.ServerError(w, h.Log, "session write failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, user)
}

// HandleSignOut clears the session cookie.
// DELETE /session
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := auth.SignOut(w, r); err != nil {
		httpjson.ServerError(w, h.Log, "sign out failed", err)
		return
	}
	httpjson.Respond(w, http.StatusNoContent, nil)
}

// HandleCurrent returns the signed-in user's record.
// GET /session
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(su.ID)
	if err != nil {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		httpjson.ServerError(w, h.Log, "load user failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, user)
}
