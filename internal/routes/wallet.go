package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/wallet"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	group := r.Group("/wallet")
	group.Get("/balances", h.Balances)
	group.Get("/transactions", h.Transactions)
	group.Get("/stats", h.Stats)
}
