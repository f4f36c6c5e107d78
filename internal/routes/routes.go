package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/guildhall/guildhall-backend/internal/handlers"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/signin", handlers.Signin)
	r.Post("/api/auth/signout", handlers.Signout)
	r.Get("/api/auth/me", handlers.Me)

	// Group routes
	r.Post("/api/groups", handlers.CreateGroup)
	r.Get("/api/groups/{groupID}", handlers.GetGroup)
	r.Post("/api/groups/{groupID}/join", handlers.JoinGroup)
	r.Post("/api/groups/{groupID}/leave", handlers.LeaveGroup)
	r.Put("/api/groups/{groupID}/restriction", handlers.SetRestriction)
	r.Post("/api/groups/{groupID}/open", handlers.OpenGroup)
	r.Post("/api/groups/{groupID}/read", handlers.MarkRead)
	r.Get("/api/groups/{groupID}/unread", handlers.UnreadCount)

	// Message routes
	r.Post("/api/groups/{groupID}/messages", handlers.SendMessage)
	r.Get("/api/groups/{groupID}/messages", handlers.ListMessages)
	r.Get("/api/groups/{groupID}/history", handlers.LoadHistory)
	r.Get("/api/groups/{groupID}/messages/{messageID}", handlers.GetMessage)
	r.Put("/api/groups/{groupID}/messages/{messageID}", handlers.EditMessage)
	r.Delete("/api/groups/{groupID}/messages/{messageID}", handlers.DeleteMessage)
	r.Post("/api/groups/{groupID}/messages/{messageID}/forward", handlers.ForwardMessage)
	r.Put("/api/groups/{groupID}/messages/{messageID}/pin", handlers.PinMessage)
	r.Delete("/api/groups/{groupID}/pin", handlers.UnpinMessage)
	r.Get("/api/groups/{groupID}/messages/{messageID}/fully-read", handlers.FullyRead)

	// Poll routes
	r.Post("/api/groups/{groupID}/polls", handlers.CreatePoll)
	r.Post("/api/groups/{groupID}/messages/{messageID}/vote", handlers.Vote)
	r.Post("/api/groups/{groupID}/messages/{messageID}/reveal", handlers.Reveal)

	// Reaction routes
	r.Post("/api/groups/{groupID}/messages/{messageID}/react", handlers.React)

	// Media upload
	r.Post("/api/groups/{groupID}/upload", handlers.UploadMedia)

	// Video conference announcements
	r.Post("/api/groups/{groupID}/conference/start", handlers.StartConference)
	r.Post("/api/groups/{groupID}/conference/end", handlers.EndConference)

	// WebSocket endpoint for realtime group events
	r.Get("/ws/chat", handlers.ChatWebSocket)
}
