// internal/app/features/chat/routes.go
package chat

import (
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// HISTORY + SEND
		pr.Get("/{groupID}/messages", h.HandleHistory)
		pr.Post("/{groupID}/messages", h.HandleSend)

		// REACTIONS
		pr.Post("/messages/{messageID}/reactions", h.HandleToggleReaction)

		// TYPING
		pr.Post("/{groupID}/typing", h.HandleTyping)
		pr.Get("/{groupID}/typing", h.HandleTypingUsers)

		// LIVE STREAM
		pr.Get("/{groupID}/ws", h.ServeWS)
	})

	return r
}
