package wager

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/ledger"
)

// Handler exposes wager HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wager HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	StakeAmount     int64    `json:"stake_amount"`
	StakeCurrency   string   `json:"stake_currency"`
	MaxParticipants int      `json:"max_participants"`
	Settings        Settings `json:"settings"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

type scoreRequest struct {
	Hole    int `json:"hole"`
	Strokes int `json:"strokes"`
	Par     int `json:"par"`
}

type resultRequest struct {
	UserID        string `json:"user_id"`
	FinalScore    int    `json:"final_score"`
	FinalPosition int    `json:"final_position"`
	Payout        int64  `json:"payout"`
}

type completeRequest struct {
	Results []resultRequest `json:"results"`
}

type wagerResponse struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	CreatorID       string    `json:"creator_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type,omitempty"`
	StakeAmount     int64     `json:"stake_amount"`
	StakeCurrency   string    `json:"stake_currency"`
	TotalPot        int64     `json:"total_pot"`
	MaxParticipants int       `json:"max_participants"`
	Participants    int       `json:"participants"`
	Status          string    `json:"status"`
	Settings        Settings  `json:"settings"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
}

func toResponse(w Wager) wagerResponse {
	return wagerResponse{
		ID:              w.ID,
		Code:            w.Code,
		CreatorID:       w.CreatorID,
		Name:            w.Name,
		Description:     w.Description,
		Type:            w.Type,
		StakeAmount:     w.StakeAmount,
		StakeCurrency:   string(w.StakeCurrency),
		TotalPot:        w.TotalPot,
		MaxParticipants: w.MaxParticipants,
		Participants:    w.Participants,
		Status:          w.Status,
		Settings:        w.Settings,
		CreatedAt:       w.CreatedAt,
		StartedAt:       w.StartedAt,
		EndedAt:         w.EndedAt,
	}
}

func toResponses(ws []Wager) []wagerResponse {
	out := make([]wagerResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toResponse(w))
	}
	return out
}

// statusFor maps lifecycle and ledger errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrCreatorBlocked):
		return http.StatusForbidden
	case errors.Is(err, ErrNotOpen), errors.Is(err, ErrNotInProgress),
		errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrFull),
		errors.Is(err, ErrNotAllReady), errors.Is(err, ErrNotAParticipant),
		errors.Is(err, ErrPayoutExceedsPot):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

func userID(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	return uid, nil
}

// Create opens a wager with the caller as its first participant.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{
		CreatorID:       uid,
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		StakeAmount:     req.StakeAmount,
		StakeCurrency:   ledger.Currency(req.StakeCurrency),
		MaxParticipants: req.MaxParticipants,
		Settings:        req.Settings,
	})
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// Join adds the caller to an open wager.
func (h *Handler) Join(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	w, err := h.service.Join(c.UserContext(), c.Params("wagerId"), uid)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// Leave removes the caller from an open wager and refunds their stake.
func (h *Handler) Leave(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	w, err := h.service.Leave(c.UserContext(), c.Params("wagerId"), uid)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// SetReady toggles the caller's readiness flag.
func (h *Handler) SetReady(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req readyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetReady(c.UserContext(), c.Params("wagerId"), uid, req.Ready); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ready": req.Ready})
}

// Start moves the wager into play.
func (h *Handler) Start(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	w, err := h.service.Start(c.UserContext(), c.Params("wagerId"), uid)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// RecordScore upserts one hole score for the caller.
func (h *Handler) RecordScore(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RecordScore(c.UserContext(), c.Params("wagerId"), uid, req.Hole, req.Strokes, req.Par); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Complete finalizes results and distributes the pot.
func (h *Handler) Complete(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	results := make([]Result, 0, len(req.Results))
	for _, r := range req.Results {
		results = append(results, Result{
			UserID:        r.UserID,
			FinalScore:    r.FinalScore,
			FinalPosition: r.FinalPosition,
			Payout:        r.Payout,
		})
	}
	w, err := h.service.Complete(c.UserContext(), c.Params("wagerId"), uid, results)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// Cancel voids an open wager and refunds every participant.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	w, err := h.service.Cancel(c.UserContext(), c.Params("wagerId"), uid)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// Get returns one wager by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("wagerId"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// GetByCode resolves a share code to its wager.
func (h *Handler) GetByCode(c *fiber.Ctx) error {
	w, err := h.service.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// Participants lists the wager roster.
func (h *Handler) Participants(c *fiber.Ctx) error {
	roster, err := h.service.Participants(c.UserContext(), c.Params("wagerId"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"participants": roster})
}

// Scores lists recorded hole scores for the wager.
func (h *Handler) Scores(c *fiber.Ctx) error {
	scores, err := h.service.Scores(c.UserContext(), c.Params("wagerId"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"scores": scores})
}

// PublicOpen lists joinable public wagers.
func (h *Handler) PublicOpen(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	ws, err := h.service.PublicOpen(c.UserContext(), limit, offset)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wagers": toResponses(ws)})
}

// Mine lists the caller's wagers, optionally filtered by status.
func (h *Handler) Mine(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ws, err := h.service.ByUser(c.UserContext(), uid, c.Query("status"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wagers": toResponses(ws)})
}
