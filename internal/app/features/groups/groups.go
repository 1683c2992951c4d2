// internal/app/features/groups/groups.go
package groups

import (
	"context"
	"errors"
	"net/http"

	groupstore "github.com/dalemusser/studychat/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studychat/internal/app/store/memberships"
	userstore "github.com/dalemusser/studychat/internal/app/store/users"
	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// createGroupInput is the request body for POST /groups.
type createGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

// memberView is a membership joined with the user's display name.
type memberView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Admin       bool   `json:"admin"`
	JoinedAt    string `json:"joined_at"`
}

// HandleCreate creates a group owned by the caller.
// POST /groups
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in createGroupInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	g, err := h.Svc.CreateGroup(ctx, in.Name, in.Description, in.Visibility, uid)
	if err != nil {
		switch {
		case errors.Is(err, groupstore.ErrInvalidName), errors.Is(err, groupstore.ErrBadVisibility):
			httpjson.Error(w, http.StatusBadRequest, err.Error())
		default:
			httpjson.ServerError(w, h.Log, "create group failed", err)
		}
		return
	}
	httpjson.Respond(w, http.StatusCreated, g)
}

// HandleList lists groups visible to the caller.
// GET /groups
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Svc.Groups(ctx, uid)
	if err != nil {
		httpjson.ServerError(w, h.Log, "list groups failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, groups)
}

// HandleGet returns one group.
// GET /groups/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Svc.Group(ctx, groupID)
	if err != nil {
		if errors.Is(err, groupstore.ErrGroupNotFound) {
			httpjson.Error(w, http.StatusNotFound, "group not found")
			return
		}
		httpjson.ServerError(w, h.Log, "get group failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, g)
}

// HandleJoin adds the caller to the group. Joining twice is an idempotent
// success and returns the existing membership.
// POST /groups/{id}/join
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Svc.Join(ctx, groupID, uid)
	if err != nil {
		if errors.Is(err, membershipstore.ErrGroupNotFound) {
			httpjson.Error(w, http.StatusNotFound, "group not found")
			return
		}
		httpjson.ServerError(w, h.Log, "join group failed", err)
		return
	}
	httpjson.Respond(w, http.StatusOK, m)
}

// HandleLeave removes the caller's membership.
// POST /groups/{id}/leave
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Svc.Leave(ctx, groupID, uid); err != nil {
		if errors.Is(err, membershipstore.ErrNotAMember) {
			httpjson.Error(w, http.StatusConflict, "not a member of this group")
			return
		}
		httpjson.ServerError(w, h.Log, "leave group failed", err)
		return
	}
	httpjson.Respond(w, http.StatusNoContent, nil)
}

// HandleMembers lists the group's members ordered by join time, with
// display names joined in. Members only.
// GET /groups/{id}/members
func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	memberships, err := h.Svc.Members(ctx, groupID, uid)
	if err != nil {
		if isNotAuthorized(err) {
			httpjson.Error(w, http.StatusForbidden, "not a member of this group")
			return
		}
		httpjson.ServerError(w, h.Log, "list members failed", err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	users, err := userstore.New(h.DB).GetByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("loading member names failed", zap.Error(err))
		users = map[string]models.User{}
	}

	views := make([]memberView, 0, len(memberships))
	for _, m := range memberships {
		v := memberView{
			UserID:   m.UserID.Hex(),
			Admin:    m.Admin,
			JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if u, ok := users[m.UserID.Hex()]; ok {
			v.DisplayName = u.DisplayName
		}
		views = append(views, v)
	}
	httpjson.Respond(w, http.StatusOK, views)
}
