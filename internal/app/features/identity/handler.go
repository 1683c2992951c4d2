// internal/app/features/identity/handler.go
package identity

import (
	userstore "github.com/dalemusser/studychat/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler holds the identity feature dependencies. Identity here is a thin
// session layer: callers establish who they are, and everything downstream
// trusts the session cookie.
type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

// NewHandler constructs an identity Handler.
func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Users: users,
		Log:   logger,
	}
}
