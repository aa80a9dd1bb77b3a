package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/ledger"
)

// Handler exposes HTTP endpoints for purchases and withdrawals.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	PackageID  string `json:"package_id"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

type withdrawRequest struct {
	Amount     int64  `json:"amount"`
	CardNumber string `json:"card_number"`
}

type settlementRequest struct {
	TransactionID string `json:"transaction_id"`
	Succeeded     bool   `json:"succeeded"`
}

func userID(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	return uid, nil
}

// Packages lists the purchasable point bundles.
func (h *Handler) Packages(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"packages": h.service.Packages()})
}

// Purchase charges a card for a point package and credits the points.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.PurchasePoints(c.UserContext(), PurchaseInput{
		UserID:     uid,
		PackageID:  req.PackageID,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownPackage) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"package_id":         result.PackageID,
		"points_credited":    result.PointsCredited,
		"charged_cents":      result.ChargedCents,
		"acquirer_reference": result.AcquirerReference,
		"completed_at":       result.CompletedAt,
	})
}

// Withdraw requests a cash payout to the caller's card.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		UserID:     uid,
		Amount:     req.Amount,
		CardNumber: req.CardNumber,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fiber.NewError(http.StatusPaymentRequired, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"transaction_id":     result.TransactionID,
		"status":             result.Status,
		"acquirer_reference": result.AcquirerReference,
		"requested_at":       result.RequestedAt,
	})
}

// Settlement receives the payout rail's asynchronous settlement signal.
func (h *Handler) Settlement(c *fiber.Ctx) error {
	var req settlementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SettleWithdrawal(c.UserContext(), req.TransactionID, req.Succeeded); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
