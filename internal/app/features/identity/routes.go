// internal/app/features/identity/routes.go
package identity

import (
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleSignIn)
	r.Delete("/", h.HandleSignOut)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Get("/", h.HandleCurrent)
	})

	return r
}
