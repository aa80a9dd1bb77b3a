package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/funding"
)

// RegisterFundingRoutes wires point purchase and withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	group := r.Group("/funding")
	group.Get("/packages", h.Packages)
	group.Post("/purchase", h.Purchase)
	group.Post("/withdraw", h.Withdraw)
	group.Post("/withdrawals/settlement", h.Settlement)
}
