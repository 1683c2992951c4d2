// internal/app/features/attachments/routes.go
package attachments

import (
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/", h.HandleUpload)
	})

	return r
}
