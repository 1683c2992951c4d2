// internal/app/features/chat/handler.go
package chat

import (
	"errors"
	"net/http"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the chat feature: message
// history, sending, reactions, typing signals, and the websocket stream.
type Handler struct {
	Svc *chatcore.Service
	Log *zap.Logger
}

// NewHandler constructs a chat Handler around the chat service.
func NewHandler(svc *chatcore.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		Log: logger,
	}
}

// caller extracts the signed-in user's id and display name.
func caller(r *http.Request) (primitive.ObjectID, string, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, "", false
	}
	return id, u.Name, true
}

func isNotAuthorized(err error) bool {
	return errors.Is(err, chatcore.ErrNotAuthorized)
}
