package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/dispute"
)

// RegisterDisputeRoutes wires dispute filing and judge endpoints.
func RegisterDisputeRoutes(r fiber.Router, h *dispute.Handler) {
	group := r.Group("/disputes")
	group.Post("", h.File)
	group.Get("/open", h.Open)
	group.Get("/judges", h.Judges)
	group.Get("/wager/:wagerId", h.ByWager)
	group.Get("/:disputeId", h.Get)
	group.Post("/:disputeId/accept", h.Accept)
	group.Post("/:disputeId/resolve", h.Resolve)
}
