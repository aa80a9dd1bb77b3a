package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func userID(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	return uid, nil
}

// Balances returns both currency accounts for the caller.
func (h *Handler) Balances(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	balances, err := h.service.Balances(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balances": balances})
}

// Transactions returns the caller's paged transaction history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	txns, err := h.service.Transactions(c.UserContext(), uid,
		c.Query("kind"), c.QueryInt("limit", defaultPageSize), c.QueryInt("offset", 0))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txns})
}

// Stats returns derived wagering statistics for the caller.
func (h *Handler) Stats(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(stats)
}
