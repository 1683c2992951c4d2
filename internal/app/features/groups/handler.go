// internal/app/features/groups/handler.go
package groups

import (
	"errors"
	"net/http"

	"github.com/dalemusser/studychat/internal/app/chat"
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// All group and membership operations go through the chat service so the
// membership invariants live in one place.
type Handler struct {
	Svc *chat.Service
	DB  *mongo.Database
	Log *zap.Logger
}

// NewHandler constructs a groups Handler. It is typically called from the
// bootstrap BuildHandler function, where the service and logger are
// already initialized.
func NewHandler(svc *chat.Service, db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		DB:  db,
		Log: logger,
	}
}

// callerID extracts the signed-in user's ObjectID from the request context.
func callerID(r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func isNotAuthorized(err error) bool {
	return errors.Is(err, chat.ErrNotAuthorized)
}
