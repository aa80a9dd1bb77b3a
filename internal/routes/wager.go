package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/wager"
)

// RegisterWagerRoutes wires the wager lifecycle endpoints.
func RegisterWagerRoutes(r fiber.Router, h *wager.Handler) {
	group := r.Group("/wagers")
	group.Post("", h.Create)
	group.Get("/public", h.PublicOpen)
	group.Get("/mine", h.Mine)
	group.Get("/code/:code", h.GetByCode)
	group.Get("/:wagerId", h.Get)
	group.Get("/:wagerId/participants", h.Participants)
	group.Get("/:wagerId/scores", h.Scores)
	group.Post("/:wagerId/join", h.Join)
	group.Post("/:wagerId/leave", h.Leave)
	group.Post("/:wagerId/ready", h.SetReady)
	group.Post("/:wagerId/start", h.Start)
	group.Post("/:wagerId/scores", h.RecordScore)
	group.Post("/:wagerId/complete", h.Complete)
	group.Post("/:wagerId/cancel", h.Cancel)
}
