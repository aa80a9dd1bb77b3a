package dispute

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/wager"
)

// Handler exposes dispute HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a dispute HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fileRequest struct {
	WagerID     string   `json:"wager_id"`
	AccusedID   string   `json:"accused_id"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

type resolveRequest struct {
	Decision   string `json:"decision"`
	Resolution string `json:"resolution"`
	Results    []struct {
		UserID        string `json:"user_id"`
		FinalScore    int    `json:"final_score"`
		FinalPosition int    `json:"final_position"`
		Payout        int64  `json:"payout"`
	} `json:"results"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, wager.ErrNotFound), errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotJudge), errors.Is(err, ErrNotAssigned), errors.Is(err, ErrConflictOfInterest):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrDisputeExists), errors.Is(err, wager.ErrNotInProgress),
		errors.Is(err, wager.ErrNotAParticipant), errors.Is(err, wager.ErrPayoutExceedsPot):
		return http.StatusConflict
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

// File opens a dispute against a running wager.
func (h *Handler) File(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req fileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := h.service.File(c.UserContext(), uid, Filing{
		WagerID:     req.WagerID,
		AccusedID:   req.AccusedID,
		Type:        req.Type,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(d)
}

// Accept assigns an open dispute to the calling judge.
func (h *Handler) Accept(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	d, err := h.service.Accept(c.UserContext(), c.Params("disputeId"), uid)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(d)
}

// Resolve settles the disputed wager with the judge's results.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	results := make([]wager.Result, 0, len(req.Results))
	for _, r := range req.Results {
		results = append(results, wager.Result{
			UserID:        r.UserID,
			FinalScore:    r.FinalScore,
			FinalPosition: r.FinalPosition,
			Payout:        r.Payout,
		})
	}
	d, err := h.service.Resolve(c.UserContext(), c.Params("disputeId"), uid, req.Decision, req.Resolution, results)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(d)
}

// Get returns one dispute.
func (h *Handler) Get(c *fiber.Ctx) error {
	d, err := h.service.Get(c.UserContext(), c.Params("disputeId"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(d)
}

// Open lists the unassigned dispute queue.
func (h *Handler) Open(c *fiber.Ctx) error {
	disputes, err := h.service.Open(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"disputes": disputes})
}

// ByWager lists disputes filed against one wager.
func (h *Handler) ByWager(c *fiber.Ctx) error {
	disputes, err := h.service.ByWager(c.UserContext(), c.Params("wagerId"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"disputes": disputes})
}

// Judges lists available judges, best rated first.
func (h *Handler) Judges(c *fiber.Ctx) error {
	judges, err := h.service.Judges(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	out := make([]fiber.Map, 0, len(judges))
	for _, j := range judges {
		out = append(out, fiber.Map{
			"id":              j.ID,
			"username":        j.Username,
			"judge_rating":    j.JudgeRating,
			"disputes_judged": j.DisputesJudged,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"judges": out})
}
